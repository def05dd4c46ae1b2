package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/santara-pay/santara_pay/internal/middleware"
	"github.com/santara-pay/santara_pay/internal/reconcile"
)

// RegisterReconcileRoutes wires the operator-triggered reconciliation run. The
// run guard keeps concurrent triggers from racing across instances.
func RegisterReconcileRoutes(r fiber.Router, h *reconcile.Handler, cache *redis.Client) {
	r.Post("/reconciliation/runs", middleware.RunGuard(cache, "reconciliation"), h.Run)
}
