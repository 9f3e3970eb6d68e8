package handler

import (
	"errors"
	"log/slog"
	"time"

	"flashsale-service/app/domain"
	"flashsale-service/app/handler/api/response"
	"flashsale-service/pkg/ctxutil"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const userCancelReason = "cancelled by user"

// orderView decorates an order with the seconds left to pay it.
type orderView struct {
	domain.Order
	RemainingSeconds int64 `json:"remaining_seconds"`
}

func toOrderView(order domain.Order, now time.Time) orderView {
	return orderView{Order: order, RemainingSeconds: order.RemainingSeconds(now)}
}

type OrderHandler struct {
	orderUsecase       domain.OrderUsecase
	reservationUsecase domain.ReservationUsecase
	validator          *validator.Validate
}

func NewOrderHandler(orderUsecase domain.OrderUsecase, reservationUsecase domain.ReservationUsecase, validator *validator.Validate) *OrderHandler {
	return &OrderHandler{
		orderUsecase:       orderUsecase,
		reservationUsecase: reservationUsecase,
		validator:          validator,
	}
}

func (h *OrderHandler) Reserve(c *fiber.Ctx) error {
	var req domain.ReserveRequest
	if err := c.BodyParser(&req); err != nil {
		slog.ErrorContext(c.Context(), "[orderHandler] Reserve", "bodyParser", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	if err := h.validator.Struct(req); err != nil {
		slog.ErrorContext(c.Context(), "[orderHandler] Reserve", "validation", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrValidation))
	}

	userID, err := ctxutil.GetUserIDCtx(c.Context())
	if err != nil {
		slog.ErrorContext(c.Context(), "[orderHandler] Reserve", "getUserIDCtx", err)
		return c.Status(fiber.StatusInternalServerError).JSON(response.Error(domain.ErrInternal))
	}

	result, err := h.reservationUsecase.Reserve(c.Context(), userID, req)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyReserved) {
			return c.Status(fiber.StatusConflict).JSON(response.ErrorWithData(
				domain.ErrAlreadyReserved, fiber.Map{"order_id": result.OrderID}))
		}
		slog.ErrorContext(c.Context(), "[orderHandler] Reserve", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusCreated).JSON(response.Success(result))
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	userID, err := ctxutil.GetUserIDCtx(c.Context())
	if err != nil {
		slog.ErrorContext(c.Context(), "[orderHandler] Cancel", "getUserIDCtx", err)
		return c.Status(fiber.StatusInternalServerError).JSON(response.Error(domain.ErrInternal))
	}

	if err := h.orderUsecase.Cancel(c.Context(), id, &userID, userCancelReason); err != nil {
		slog.ErrorContext(c.Context(), "[orderHandler] Cancel", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(fiber.Map{"order_id": id}))
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	userID, err := ctxutil.GetUserIDCtx(c.Context())
	if err != nil {
		slog.ErrorContext(c.Context(), "[orderHandler] List", "getUserIDCtx", err)
		return c.Status(fiber.StatusInternalServerError).JSON(response.Error(domain.ErrInternal))
	}

	orders, err := h.orderUsecase.ListByUser(c.Context(), userID)
	if err != nil {
		slog.ErrorContext(c.Context(), "[orderHandler] List", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	now := time.Now()
	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, toOrderView(order, now))
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(views))
}

func (h *OrderHandler) GetByID(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	userID, err := ctxutil.GetUserIDCtx(c.Context())
	if err != nil {
		slog.ErrorContext(c.Context(), "[orderHandler] GetByID", "getUserIDCtx", err)
		return c.Status(fiber.StatusInternalServerError).JSON(response.Error(domain.ErrInternal))
	}

	order, err := h.orderUsecase.GetByID(c.Context(), id, userID)
	if err != nil {
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(toOrderView(order, time.Now())))
}

// MarkPaid is the internal trigger invoked by the payment collaborator.
func (h *OrderHandler) MarkPaid(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	if err := h.orderUsecase.MarkPaid(c.Context(), id); err != nil {
		slog.ErrorContext(c.Context(), "[orderHandler] MarkPaid", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(fiber.Map{"order_id": id}))
}

func (h *OrderHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.orderUsecase.Stats(c.Context())
	if err != nil {
		slog.ErrorContext(c.Context(), "[orderHandler] Stats", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(stats))
}
