package handler

import (
	"log/slog"
	"strconv"

	"flashsale-service/app/domain"
	"flashsale-service/app/handler/api/response"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type ActivityHandler struct {
	activityUsecase    domain.ActivityUsecase
	reservationUsecase domain.ReservationUsecase
	validator          *validator.Validate
}

func NewActivityHandler(activityUsecase domain.ActivityUsecase, reservationUsecase domain.ReservationUsecase, validator *validator.Validate) *ActivityHandler {
	return &ActivityHandler{
		activityUsecase:    activityUsecase,
		reservationUsecase: reservationUsecase,
		validator:          validator,
	}
}

func parseIDParam(c *fiber.Ctx, name string) (int64, bool) {
	idStr := c.Params(name)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *ActivityHandler) Create(c *fiber.Ctx) error {
	var req domain.ActivityCreateRequest
	if err := c.BodyParser(&req); err != nil {
		slog.ErrorContext(c.Context(), "[activityHandler] Create", "bodyParser", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	if err := h.validator.Struct(req); err != nil {
		slog.ErrorContext(c.Context(), "[activityHandler] Create", "validation", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrValidation))
	}

	activity, err := h.activityUsecase.Create(c.Context(), req)
	if err != nil {
		slog.ErrorContext(c.Context(), "[activityHandler] Create", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusCreated).JSON(response.Success(activity))
}

func (h *ActivityHandler) List(c *fiber.Ctx) error {
	activities, err := h.activityUsecase.List(c.Context())
	if err != nil {
		slog.ErrorContext(c.Context(), "[activityHandler] List", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(activities))
}

func (h *ActivityHandler) GetByID(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	activity, err := h.activityUsecase.GetByID(c.Context(), id)
	if err != nil {
		slog.ErrorContext(c.Context(), "[activityHandler] GetByID", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(activity))
}

func (h *ActivityHandler) Cancel(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	if err := h.activityUsecase.Cancel(c.Context(), id); err != nil {
		slog.ErrorContext(c.Context(), "[activityHandler] Cancel", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(nil))
}

type rollbackRequest struct {
	Quantity int64  `json:"quantity" validate:"required,min=1"`
	Reason   string `json:"reason" validate:"required"`
}

func (h *ActivityHandler) Rollback(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	var req rollbackRequest
	if err := c.BodyParser(&req); err != nil {
		slog.ErrorContext(c.Context(), "[activityHandler] Rollback", "bodyParser", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	if err := h.validator.Struct(req); err != nil {
		slog.ErrorContext(c.Context(), "[activityHandler] Rollback", "validation", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrValidation))
	}

	restoredTo, err := h.reservationUsecase.Rollback(c.Context(), id, req.Quantity, req.Reason)
	if err != nil {
		slog.ErrorContext(c.Context(), "[activityHandler] Rollback", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(fiber.Map{"restored_to": restoredTo}))
}
