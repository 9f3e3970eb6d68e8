package handler

import (
	"log/slog"

	"flashsale-service/app/domain"
	"flashsale-service/app/handler/api/response"

	"github.com/gofiber/fiber/v2"
)

type AuditHandler struct {
	auditUsecase domain.AuditUsecase
}

func NewAuditHandler(auditUsecase domain.AuditUsecase) *AuditHandler {
	return &AuditHandler{auditUsecase: auditUsecase}
}

func (h *AuditHandler) Check(c *fiber.Ctx) error {
	summary, err := h.auditUsecase.CheckAll(c.Context())
	if err != nil {
		slog.ErrorContext(c.Context(), "[auditHandler] Check", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(summary))
}

func (h *AuditHandler) CheckActivity(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	report, err := h.auditUsecase.CheckActivity(c.Context(), id)
	if err != nil {
		slog.ErrorContext(c.Context(), "[auditHandler] CheckActivity", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	if report == nil {
		return c.Status(fiber.StatusOK).JSON(response.Success(fiber.Map{"consistent": true}))
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(report))
}

func (h *AuditHandler) Fix(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	result, err := h.auditUsecase.Fix(c.Context(), id)
	if err != nil {
		slog.ErrorContext(c.Context(), "[auditHandler] Fix", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(result))
}
