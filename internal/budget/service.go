package budget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/santara-pay/santara_pay/internal/notification"
)

const defaultAlertThreshold = 0.8

// Service runs the two-phase budget flow: a booking request reserves budget
// (pending), approval converts the reservation to spend, rejection releases
// it. Overspend never blocks; it alerts.
type Service struct {
	repo     Repository
	notifier notification.Notifier

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService builds a budget allocator.
func NewService(repo Repository, notifier notification.Notifier) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		locks:    make(map[string]*sync.Mutex),
	}
}

// AllocateInput sets up a department budget for a fiscal period.
type AllocateInput struct {
	Scope          Scope
	Amount         int64
	AlertThreshold float64
}

// Allocate creates the budget for a scope.
func (s *Service) Allocate(ctx context.Context, in AllocateInput) (Budget, error) {
	if in.Amount <= 0 {
		return Budget{}, ErrInvalidAmount
	}
	threshold := in.AlertThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = defaultAlertThreshold
	}
	now := time.Now().UTC()
	b := Budget{
		ID:              uuid.NewString(),
		Scope:           in.Scope,
		AllocatedAmount: in.Amount,
		AlertThreshold:  threshold,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return Budget{}, err
	}
	return b, nil
}

// Get returns the budget for a scope.
func (s *Service) Get(ctx context.Context, scope Scope) (Budget, error) {
	return s.repo.GetByScope(ctx, scope)
}

// Reserve sets aside budget for a booking request. Replaying the same
// reference returns the current budget without reserving twice.
func (s *Service) Reserve(ctx context.Context, scope Scope, amount int64, reference string) (Budget, error) {
	if amount <= 0 {
		return Budget{}, ErrInvalidAmount
	}
	if reference == "" {
		return Budget{}, fmt.Errorf("reservation reference is required")
	}

	unlock := s.lock(scope)
	defer unlock()

	b, err := s.repo.GetByScope(ctx, scope)
	if err != nil {
		return Budget{}, err
	}
	entries, err := s.repo.EntriesByReference(ctx, b.ID, reference)
	if err != nil {
		return Budget{}, err
	}
	if findEntry(entries, EntryReserve) != nil {
		return b, nil
	}

	entry := Entry{
		ID:            uuid.NewString(),
		BudgetID:      b.ID,
		Kind:          EntryReserve,
		Amount:        amount,
		SpentBefore:   b.SpentAmount,
		SpentAfter:    b.SpentAmount,
		PendingBefore: b.PendingAmount,
		PendingAfter:  b.PendingAmount + amount,
		Reference:     reference,
		CreatedAt:     time.Now().UTC(),
	}
	updated, err := s.append(ctx, b, entry)
	if err != nil {
		return Budget{}, err
	}
	s.emitAlerts(ctx, b, updated)
	return updated, nil
}

// Commit converts a reservation into spend in one atomic step.
func (s *Service) Commit(ctx context.Context, scope Scope, reference string) (Budget, error) {
	return s.finalize(ctx, scope, reference, EntryCommit)
}

// Release returns a reservation to the available allocation.
func (s *Service) Release(ctx context.Context, scope Scope, reference string) (Budget, error) {
	return s.finalize(ctx, scope, reference, EntryRelease)
}

func (s *Service) finalize(ctx context.Context, scope Scope, reference string, kind EntryKind) (Budget, error) {
	unlock := s.lock(scope)
	defer unlock()

	b, err := s.repo.GetByScope(ctx, scope)
	if err != nil {
		return Budget{}, err
	}
	entries, err := s.repo.EntriesByReference(ctx, b.ID, reference)
	if err != nil {
		return Budget{}, err
	}

	reserved := findEntry(entries, EntryReserve)
	if reserved == nil {
		return Budget{}, ErrReservationNotFound
	}
	if findEntry(entries, kind) != nil {
		return b, nil
	}
	if findEntry(entries, otherTerminal(kind)) != nil {
		return Budget{}, ErrAlreadyFinalized
	}

	entry := Entry{
		ID:            uuid.NewString(),
		BudgetID:      b.ID,
		Kind:          kind,
		Amount:        reserved.Amount,
		SpentBefore:   b.SpentAmount,
		SpentAfter:    b.SpentAmount,
		PendingBefore: b.PendingAmount,
		PendingAfter:  b.PendingAmount - reserved.Amount,
		Reference:     reference,
		CreatedAt:     time.Now().UTC(),
	}
	if kind == EntryCommit {
		entry.SpentAfter = b.SpentAmount + reserved.Amount
	}

	updated, err := s.append(ctx, b, entry)
	if err != nil {
		return Budget{}, err
	}
	s.emitAlerts(ctx, b, updated)
	return updated, nil
}

func (s *Service) append(ctx context.Context, b Budget, entry Entry) (Budget, error) {
	err := s.repo.AppendWithAmounts(ctx, entry, b.SpentAmount, b.PendingAmount)
	if err != nil {
		if errors.Is(err, errDuplicateEntry) {
			return s.repo.GetByScope(ctx, b.Scope)
		}
		return Budget{}, err
	}
	b.SpentAmount = entry.SpentAfter
	b.PendingAmount = entry.PendingAfter
	return b, nil
}

// emitAlerts fires edge-triggered alerts by comparing utilization before and
// after the mutation, so a budget hovering above its threshold does not storm.
func (s *Service) emitAlerts(ctx context.Context, before, after Budget) {
	if s.notifier == nil || after.AllocatedAmount <= 0 {
		return
	}
	subject := fmt.Sprintf("%s/%s/%d-Q%d", after.Scope.CompanyID, after.Scope.Department, after.Scope.FiscalYear, after.Scope.FiscalQuarter)

	if before.Utilization() < after.AlertThreshold && after.Utilization() >= after.AlertThreshold {
		_ = s.notifier.Send(ctx, notification.Event{
			Kind:       notification.KindBudgetThreshold,
			Subject:    subject,
			Body:       fmt.Sprintf("budget utilization reached %.0f%% of allocation", after.Utilization()*100),
			Amount:     after.Committed(),
			OccurredAt: time.Now().UTC(),
		})
	}
	if before.Committed() <= before.AllocatedAmount && after.Committed() > after.AllocatedAmount {
		_ = s.notifier.Send(ctx, notification.Event{
			Kind:       notification.KindBudgetOverAllocation,
			Subject:    subject,
			Body:       "committed spend exceeds allocation",
			Amount:     after.Committed() - after.AllocatedAmount,
			OccurredAt: time.Now().UTC(),
		})
	}
}

func (s *Service) lock(scope Scope) func() {
	key := fmt.Sprintf("%s/%s/%d/%d", scope.CompanyID, scope.Department, scope.FiscalYear, scope.FiscalQuarter)
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func findEntry(entries []Entry, kind EntryKind) *Entry {
	for i := range entries {
		if entries[i].Kind == kind {
			return &entries[i]
		}
	}
	return nil
}

func otherTerminal(kind EntryKind) EntryKind {
	if kind == EntryCommit {
		return EntryRelease
	}
	return EntryCommit
}
