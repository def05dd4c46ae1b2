package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/santara-pay/santara_pay/internal/credit"
)

// RegisterCreditRoutes wires partner credit limit management endpoints.
func RegisterCreditRoutes(r fiber.Router, h *credit.Handler) {
	r.Post("/partners/:ownerId/credit-limit/changes", h.Propose)
	r.Get("/partners/:ownerId/credit-limit/changes", h.History)
	r.Post("/credit-limit/changes/:changeId/approve", h.Approve)
	r.Post("/credit-limit/changes/:changeId/reject", h.Reject)
}
