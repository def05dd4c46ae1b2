package reconcile

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/santara-pay/santara_pay/internal/wallet"
)

// Handler exposes reconciliation runs over HTTP. Runs are operator-triggered;
// scheduling belongs to whatever invokes the endpoint.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type runRequest struct {
	WalletID string `json:"wallet_id"`
	Kind     string `json:"kind"`
}

type runResponse struct {
	Checked        int    `json:"checked"`
	Repaired       int    `json:"repaired"`
	CreditSynced   int    `json:"credit_synced"`
	WalletsCreated int    `json:"wallets_created"`
	Failed         int    `json:"failed"`
	StartedAt      string `json:"started_at"`
	FinishedAt     string `json:"finished_at"`
}

// Run triggers a reconciliation pass. An empty body reconciles everything.
func (h *Handler) Run(c *fiber.Ctx) error {
	var req runRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	scope := Scope{WalletID: req.WalletID}
	if req.Kind != "" {
		kind, err := wallet.ParseKind(req.Kind)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		scope.Kind = kind
	}

	report, err := h.engine.Run(c.Context(), scope)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "reconciliation run failed")
	}

	return c.Status(fiber.StatusOK).JSON(runResponse{
		Checked:        report.Checked,
		Repaired:       report.Repaired,
		CreditSynced:   report.CreditSynced,
		WalletsCreated: report.WalletsCreated,
		Failed:         report.Failed,
		StartedAt:      report.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:     report.FinishedAt.UTC().Format(time.RFC3339),
	})
}
