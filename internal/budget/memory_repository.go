package budget

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository holds budgets in memory for tests and dev mode.
type MemoryRepository struct {
	mu      sync.RWMutex
	byScope map[Scope]string
	byID    map[string]Budget
	entries []Entry
}

// NewMemoryRepository constructs an empty in-memory budget repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byScope: make(map[Scope]string),
		byID:    make(map[string]Budget),
	}
}

func (r *MemoryRepository) Create(_ context.Context, b Budget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byScope[b.Scope]; exists {
		return ErrExists
	}
	r.byScope[b.Scope] = b.ID
	r.byID[b.ID] = b
	return nil
}

func (r *MemoryRepository) GetByScope(_ context.Context, scope Scope) (Budget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byScope[scope]
	if !ok {
		return Budget{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepository) AppendWithAmounts(_ context.Context, entry Entry, expectedSpent, expectedPending int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.byID[entry.BudgetID]
	if !ok {
		return ErrNotFound
	}
	for _, e := range r.entries {
		if e.BudgetID == entry.BudgetID && e.Kind == entry.Kind && e.Reference == entry.Reference {
			return errDuplicateEntry
		}
	}
	if b.SpentAmount != expectedSpent || b.PendingAmount != expectedPending {
		return ErrStaleAmounts
	}

	b.SpentAmount = entry.SpentAfter
	b.PendingAmount = entry.PendingAfter
	b.UpdatedAt = time.Now().UTC()
	r.byID[entry.BudgetID] = b
	r.entries = append(r.entries, entry)
	return nil
}

func (r *MemoryRepository) EntriesByReference(_ context.Context, budgetID, reference string) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, e := range r.entries {
		if e.BudgetID == budgetID && e.Reference == reference {
			out = append(out, e)
		}
	}
	return out, nil
}
