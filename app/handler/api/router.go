package handler

import (
	"flashsale-service/app/middleware"
	"flashsale-service/config"

	"github.com/gofiber/fiber/v2"
)

func SetupRouter(app *fiber.App, activityHandler *ActivityHandler, orderHandler *OrderHandler, auditHandler *AuditHandler, cfg *config.Config) {

	api := app.Group("/flashsale-service").Use(middleware.Auth(cfg.Jwt.SecretKey))

	api.Get("/activities", activityHandler.List)
	api.Get("/activities/:id", activityHandler.GetByID)

	api.Post("/orders", orderHandler.Reserve)
	api.Get("/orders", orderHandler.List)
	api.Get("/orders/:id", orderHandler.GetByID)
	api.Post("/orders/:id/cancel", orderHandler.Cancel)

	internal := app.Group("/internal/flashsale-service").Use(middleware.AuthInternal(cfg))
	internal.Post("/activities", activityHandler.Create)
	internal.Post("/activities/:id/cancel", activityHandler.Cancel)
	internal.Post("/activities/:id/rollback", activityHandler.Rollback)
	internal.Post("/orders/:id/paid", orderHandler.MarkPaid)
	internal.Get("/orders/stats", orderHandler.Stats)
	internal.Get("/audit", auditHandler.Check)
	internal.Get("/audit/:id", auditHandler.CheckActivity)
	internal.Post("/audit/:id/fix", auditHandler.Fix)
}
