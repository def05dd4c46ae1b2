package budget

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/santara-pay/santara_pay/internal/notification"
)

type captureNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (n *captureNotifier) Send(_ context.Context, event notification.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *captureNotifier) byKind(kind string) []notification.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification.Event
	for _, e := range n.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func newTestBudget(t *testing.T, amount int64, threshold float64) (*Service, *captureNotifier, Scope) {
	t.Helper()
	notifier := &captureNotifier{}
	svc := NewService(NewMemoryRepository(), notifier)
	scope := Scope{CompanyID: "acme", Department: "sales", FiscalYear: 2026, FiscalQuarter: 3}
	if _, err := svc.Allocate(context.Background(), AllocateInput{Scope: scope, Amount: amount, AlertThreshold: threshold}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	return svc, notifier, scope
}

func TestReserveCommitLifecycle(t *testing.T) {
	svc, _, scope := newTestBudget(t, 100_000, 0.8)
	ctx := context.Background()

	b, err := svc.Reserve(ctx, scope, 30_000, "booking-1")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if b.PendingAmount != 30_000 || b.SpentAmount != 0 {
		t.Fatalf("after reserve: pending=%d spent=%d", b.PendingAmount, b.SpentAmount)
	}

	b, err = svc.Commit(ctx, scope, "booking-1")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if b.PendingAmount != 0 || b.SpentAmount != 30_000 {
		t.Fatalf("after commit: pending=%d spent=%d", b.PendingAmount, b.SpentAmount)
	}
	if b.Committed() != 30_000 {
		t.Fatalf("committed %d, want 30000", b.Committed())
	}
}

func TestReleaseReturnsReservation(t *testing.T) {
	svc, _, scope := newTestBudget(t, 100_000, 0.8)
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, scope, 30_000, "booking-2"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	b, err := svc.Release(ctx, scope, "booking-2")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if b.PendingAmount != 0 || b.SpentAmount != 0 {
		t.Fatalf("after release: pending=%d spent=%d", b.PendingAmount, b.SpentAmount)
	}
}

func TestReserveReplaysByReference(t *testing.T) {
	svc, _, scope := newTestBudget(t, 100_000, 0.8)
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, scope, 30_000, "booking-3"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	b, err := svc.Reserve(ctx, scope, 30_000, "booking-3")
	if err != nil {
		t.Fatalf("replay reserve: %v", err)
	}
	if b.PendingAmount != 30_000 {
		t.Fatalf("replay reserved twice: pending=%d", b.PendingAmount)
	}
}

func TestFinalizeGuards(t *testing.T) {
	svc, _, scope := newTestBudget(t, 100_000, 0.8)
	ctx := context.Background()

	if _, err := svc.Commit(ctx, scope, "no-such-booking"); !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("commit without reserve: expected ErrReservationNotFound, got %v", err)
	}

	if _, err := svc.Reserve(ctx, scope, 10_000, "booking-4"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := svc.Commit(ctx, scope, "booking-4"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Committing again is a replay; releasing a committed reservation is not.
	if _, err := svc.Commit(ctx, scope, "booking-4"); err != nil {
		t.Fatalf("commit replay: %v", err)
	}
	if _, err := svc.Release(ctx, scope, "booking-4"); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("release after commit: expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestThresholdAlertFiresOnce(t *testing.T) {
	svc, notifier, scope := newTestBudget(t, 100_000, 0.8)
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, scope, 70_000, "booking-5"); err != nil {
		t.Fatalf("reserve below threshold: %v", err)
	}
	if got := notifier.byKind(notification.KindBudgetThreshold); len(got) != 0 {
		t.Fatalf("alert fired below threshold: %d", len(got))
	}

	// Crossing 80% fires exactly one alert.
	if _, err := svc.Reserve(ctx, scope, 15_000, "booking-6"); err != nil {
		t.Fatalf("reserve crossing threshold: %v", err)
	}
	if got := notifier.byKind(notification.KindBudgetThreshold); len(got) != 1 {
		t.Fatalf("expected 1 threshold alert, got %d", len(got))
	}

	// Staying above it must not fire again.
	if _, err := svc.Reserve(ctx, scope, 5_000, "booking-7"); err != nil {
		t.Fatalf("reserve above threshold: %v", err)
	}
	if got := notifier.byKind(notification.KindBudgetThreshold); len(got) != 1 {
		t.Fatalf("alert stormed: got %d", len(got))
	}
}

func TestOverAllocationAlertsButDoesNotBlock(t *testing.T) {
	svc, notifier, scope := newTestBudget(t, 100_000, 0.8)
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, scope, 90_000, "booking-8"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	b, err := svc.Reserve(ctx, scope, 20_000, "booking-9")
	if err != nil {
		t.Fatalf("over-allocating reserve must not block: %v", err)
	}
	if b.Committed() != 110_000 {
		t.Fatalf("committed %d, want 110000", b.Committed())
	}
	if got := notifier.byKind(notification.KindBudgetOverAllocation); len(got) != 1 {
		t.Fatalf("expected 1 over-allocation alert, got %d", len(got))
	}

	// Further spend above the line does not re-alert.
	if _, err := svc.Reserve(ctx, scope, 5_000, "booking-10"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got := notifier.byKind(notification.KindBudgetOverAllocation); len(got) != 1 {
		t.Fatalf("over-allocation alert stormed: got %d", len(got))
	}
}

func TestAllocateValidation(t *testing.T) {
	notifier := &captureNotifier{}
	svc := NewService(NewMemoryRepository(), notifier)
	scope := Scope{CompanyID: "acme", Department: "ops", FiscalYear: 2026, FiscalQuarter: 1}
	ctx := context.Background()

	if _, err := svc.Allocate(ctx, AllocateInput{Scope: scope, Amount: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero allocation: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Allocate(ctx, AllocateInput{Scope: scope, Amount: 50_000}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, err := svc.Allocate(ctx, AllocateInput{Scope: scope, Amount: 60_000}); !errors.Is(err, ErrExists) {
		t.Fatalf("duplicate scope: expected ErrExists, got %v", err)
	}

	b, err := svc.Get(ctx, scope)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.AlertThreshold != defaultAlertThreshold {
		t.Fatalf("threshold %f, want default %f", b.AlertThreshold, defaultAlertThreshold)
	}
	if _, err := svc.Get(ctx, Scope{CompanyID: "other"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown scope: expected ErrNotFound, got %v", err)
	}
}
