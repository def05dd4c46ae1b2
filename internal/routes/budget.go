package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/santara-pay/santara_pay/internal/budget"
)

// RegisterBudgetRoutes wires corporate budget allocation and the two-phase
// reserve/commit/release lifecycle.
func RegisterBudgetRoutes(r fiber.Router, h *budget.Handler) {
	budgets := r.Group("/budgets")
	budgets.Post("", h.Allocate)
	budgets.Post("/reservations", h.Reserve)
	budgets.Post("/reservations/commit", h.Commit)
	budgets.Post("/reservations/release", h.Release)
	budgets.Get("/:companyId/:department/:year/:quarter", h.Status)
}
