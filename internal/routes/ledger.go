package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/santara-pay/santara_pay/internal/ledger"
)

// RegisterLedgerRoutes wires wallet balance and transaction endpoints. Every
// money movement goes through one of these; there is no raw balance write.
func RegisterLedgerRoutes(r fiber.Router, h *ledger.Handler) {
	wallets := r.Group("/wallets/:kind/:ownerId")
	wallets.Post("/credits", h.Credit)
	wallets.Post("/debits", h.Debit)
	wallets.Get("/balance", h.Balance)
	wallets.Get("/transactions", h.History)

	// Guide withdrawal approval marker; the hold was debited at request time.
	r.Post("/wallets/guide/:ownerId/withdrawals/confirm", h.ConfirmWithdrawal)
}
