package credit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/santara-pay/santara_pay/internal/wallet"
)

// WalletLocker hands out the same per-wallet lock the transaction processor
// serializes through. Approving a limit change takes it so usage cannot grow
// past the new limit between the check and the write.
type WalletLocker interface {
	LockWallet(walletID string) func()
}

// Manager runs the credit-limit approval workflow for partner wallets. The
// authorization rule itself (balance may not drop below -credit_limit) lives
// in the wallet kind policy consulted by the transaction processor.
type Manager struct {
	wallets wallet.Repository
	changes Repository
	locker  WalletLocker
}

// NewManager builds a credit line manager.
func NewManager(wallets wallet.Repository, changes Repository, locker WalletLocker) *Manager {
	return &Manager{wallets: wallets, changes: changes, locker: locker}
}

// ProposeInput captures a requested credit-limit adjustment.
type ProposeInput struct {
	OwnerID     string
	NewLimit    int64
	Reason      string
	RequestedBy string
}

// Propose records a pending limit change for the partner's credit wallet.
func (m *Manager) Propose(ctx context.Context, in ProposeInput) (LimitChange, error) {
	if in.NewLimit < 0 {
		return LimitChange{}, ErrInvalidLimit
	}
	w, err := m.wallets.GetByOwner(ctx, in.OwnerID, wallet.KindPartnerCredit)
	if err != nil {
		return LimitChange{}, err
	}

	change := LimitChange{
		ID:           uuid.NewString(),
		WalletID:     w.ID,
		OwnerID:      in.OwnerID,
		OldLimit:     w.CreditLimit,
		NewLimit:     in.NewLimit,
		ChangeAmount: in.NewLimit - w.CreditLimit,
		Reason:       in.Reason,
		RequestedBy:  in.RequestedBy,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.changes.Create(ctx, change); err != nil {
		return LimitChange{}, err
	}
	return change, nil
}

// Approve applies a pending limit change. A change that would retroactively
// breach the credit invariant (new limit below current usage) is rejected and
// recorded as such.
func (m *Manager) Approve(ctx context.Context, changeID, approverID string) (LimitChange, error) {
	change, err := m.changes.Get(ctx, changeID)
	if err != nil {
		return LimitChange{}, err
	}
	if change.Status != StatusPending {
		return LimitChange{}, ErrAlreadyDecided
	}

	unlock := m.locker.LockWallet(change.WalletID)
	defer unlock()

	w, err := m.wallets.Get(ctx, change.WalletID)
	if err != nil {
		return LimitChange{}, err
	}
	now := time.Now().UTC()

	if change.NewLimit < w.CreditUsed {
		if err := m.changes.Decide(ctx, changeID, StatusRejected, approverID, now); err != nil {
			return LimitChange{}, err
		}
		return LimitChange{}, ErrLimitBelowUsage
	}

	if err := m.wallets.SetCreditLimit(ctx, w.ID, change.NewLimit); err != nil {
		return LimitChange{}, err
	}
	if err := m.changes.Decide(ctx, changeID, StatusApproved, approverID, now); err != nil {
		return LimitChange{}, err
	}
	return m.changes.Get(ctx, changeID)
}

// Reject finalizes a pending change without touching the wallet.
func (m *Manager) Reject(ctx context.Context, changeID, approverID string) (LimitChange, error) {
	if err := m.changes.Decide(ctx, changeID, StatusRejected, approverID, time.Now().UTC()); err != nil {
		return LimitChange{}, err
	}
	return m.changes.Get(ctx, changeID)
}

// History lists a partner's limit changes, oldest first.
func (m *Manager) History(ctx context.Context, ownerID string) ([]LimitChange, error) {
	return m.changes.ListByOwner(ctx, ownerID)
}
