package notification

import (
	"context"
	"log/slog"
	"time"
)

const (
	// KindBudgetThreshold fires when a budget's utilization crosses its alert
	// threshold from below.
	KindBudgetThreshold = "budget.threshold"
	// KindBudgetOverAllocation fires when spent plus pending first exceeds the
	// allocation.
	KindBudgetOverAllocation = "budget.over_allocation"
	// KindNegativeBalance flags a non-credit wallet found below zero.
	KindNegativeBalance = "wallet.negative_balance"
	// KindBalanceDrift reports a reconciliation repair of a drifted balance.
	KindBalanceDrift = "wallet.balance_drift"
)

// Event describes an alert payload. Subject identifies the wallet or budget
// concerned so downstream consumers can partition by it.
type Event struct {
	Kind       string    `json:"kind"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Amount     int64     `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier delivers alert events to downstream systems. Delivery itself is a
// collaborator concern; the ledger only emits.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// LoggerNotifier writes events to the structured logger. Used in dev mode and
// as the fallback when no broker is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the event to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("alert",
		"kind", event.Kind,
		"subject", event.Subject,
		"body", event.Body,
		"amount", event.Amount,
	)
	return nil
}
