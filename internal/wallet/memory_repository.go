package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a concurrency-safe in-memory wallet store used by tests
// and by dev mode when no database is configured. It also carries the
// compare-and-swap primitive the in-memory transaction log commits through.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]Wallet
	byOwner map[ownerKey]string
}

type ownerKey struct {
	ownerID string
	kind    Kind
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]Wallet),
		byOwner: make(map[ownerKey]string),
	}
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byID[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (r *MemoryRepository) GetByOwner(_ context.Context, ownerID string, kind Kind) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byOwner[ownerKey{ownerID, kind}]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepository) GetOrCreate(_ context.Context, ownerID string, kind Kind) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byOwner[ownerKey{ownerID, kind}]; ok {
		return r.byID[id], nil
	}
	now := time.Now().UTC()
	w := Wallet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.byID[w.ID] = w
	r.byOwner[ownerKey{ownerID, kind}] = w.ID
	return w, nil
}

func (r *MemoryRepository) ListIDs(_ context.Context, kind Kind) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byID))
	for id, w := range r.byID {
		if kind != "" && w.Kind != kind {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *MemoryRepository) SetCreditLimit(_ context.Context, id string, limit int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	w.CreditLimit = limit
	w.UpdatedAt = time.Now().UTC()
	r.byID[id] = w
	return nil
}

func (r *MemoryRepository) SetCreditUsed(_ context.Context, id string, used int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	w.CreditUsed = used
	w.UpdatedAt = time.Now().UTC()
	r.byID[id] = w
	return nil
}

// CompareAndSwapBalance writes a new balance and derived credit usage only if
// the stored balance still equals expected. Used by the in-memory transaction
// log; the Postgres log performs the equivalent conditional UPDATE inside its
// commit transaction.
func (r *MemoryRepository) CompareAndSwapBalance(id string, expected, newBalance, newCreditUsed int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if w.Balance != expected {
		return false, nil
	}
	w.Balance = newBalance
	w.CreditUsed = newCreditUsed
	w.UpdatedAt = time.Now().UTC()
	r.byID[id] = w
	return true, nil
}
