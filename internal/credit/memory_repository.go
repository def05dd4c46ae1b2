package credit

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	changes map[string]LimitChange
}

// NewMemoryRepository constructs an in-memory limit change repository for
// tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{changes: make(map[string]LimitChange)}
}

func (r *memoryRepository) Create(_ context.Context, change LimitChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes[change.ID] = change
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (LimitChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	change, ok := r.changes[id]
	if !ok {
		return LimitChange{}, ErrChangeNotFound
	}
	return change, nil
}

func (r *memoryRepository) Decide(_ context.Context, id string, status ChangeStatus, approvedBy string, decidedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	change, ok := r.changes[id]
	if !ok {
		return ErrChangeNotFound
	}
	if change.Status != StatusPending {
		return ErrAlreadyDecided
	}
	change.Status = status
	change.ApprovedBy = approvedBy
	t := decidedAt.UTC()
	change.DecidedAt = &t
	r.changes[id] = change
	return nil
}

func (r *memoryRepository) ListByOwner(_ context.Context, ownerID string) ([]LimitChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []LimitChange
	for _, change := range r.changes {
		if change.OwnerID == ownerID {
			out = append(out, change)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
