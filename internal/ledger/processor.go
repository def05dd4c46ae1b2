package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/santara-pay/santara_pay/internal/wallet"
)

const defaultMaxRetries = 3

// ReferenceTypeReconciliation marks corrective entries written by the
// reconciliation engine rather than a live caller.
const ReferenceTypeReconciliation = "reconciliation"

// Intent is a requested balance mutation. Amount is signed; its sign must
// match the transaction type's convention.
type Intent struct {
	WalletID       string
	Amount         int64
	Type           Type
	IdempotencyKey string
	ReferenceType  string
	ReferenceID    string
	CreatedBy      string
}

// Processor is the only component that mutates wallet balances. It serializes
// intents per wallet, replays committed idempotency keys, validates the
// wallet kind's balance policy, and commits through the log's
// compare-and-swap primitive.
type Processor struct {
	wallets    wallet.Repository
	log        Log
	locks      *lockTable
	maxRetries int
}

// NewProcessor builds a transaction processor. maxRetries bounds how many
// times a compare-and-swap miss is retried before returning ErrConflict.
func NewProcessor(wallets wallet.Repository, log Log, maxRetries int) *Processor {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Processor{
		wallets:    wallets,
		log:        log,
		locks:      newLockTable(),
		maxRetries: maxRetries,
	}
}

// Apply executes one ledger intent. Exactly one transaction row exists per
// accepted intent; every failure path leaves both the wallet and the log
// untouched. Replaying a committed key returns the stored result unchanged.
func (p *Processor) Apply(ctx context.Context, intent Intent) (Result, error) {
	if intent.IdempotencyKey == "" {
		return Result{}, ErrMissingIdempotencyKey
	}

	unlock := p.locks.acquire(intent.WalletID)
	defer unlock()

	return p.applyLocked(ctx, intent, false)
}

// LockWallet takes the same per-wallet lock Apply serializes through. The
// reconciliation engine holds it across its read-recompute-repair sequence so
// live traffic cannot interleave; it must hold at most one at a time.
func (p *Processor) LockWallet(walletID string) func() {
	return p.locks.acquire(walletID)
}

// ApplyCorrection writes a system-generated adjustment outside the fast path.
// The caller must already hold the wallet lock via LockWallet. Kind policy is
// deliberately not enforced: corrections bring a drifted balance back in line
// with the log even when the result would be rejected for a live intent.
func (p *Processor) ApplyCorrection(ctx context.Context, walletID string, amount int64, key, note string) (Result, error) {
	if key == "" {
		return Result{}, ErrMissingIdempotencyKey
	}
	return p.applyLocked(ctx, Intent{
		WalletID:       walletID,
		Amount:         amount,
		Type:           TypeAdjustment,
		IdempotencyKey: key,
		ReferenceType:  ReferenceTypeReconciliation,
		ReferenceID:    note,
		CreatedBy:      "reconciler",
	}, true)
}

func (p *Processor) applyLocked(ctx context.Context, intent Intent, corrective bool) (Result, error) {
	existing, err := p.log.FindByIdempotencyKey(ctx, intent.WalletID, intent.IdempotencyKey)
	if err != nil {
		return Result{}, fmt.Errorf("idempotency lookup: %w", err)
	}
	if existing != nil {
		return replayResult(*existing), nil
	}

	for attempt := 0; attempt < p.maxRetries; attempt++ {
		w, err := p.wallets.Get(ctx, intent.WalletID)
		if err != nil {
			return Result{}, err
		}

		if err := ValidateType(w.Kind, intent.Type, intent.Amount); err != nil {
			return Result{}, err
		}

		proposed := w.Balance + intent.Amount
		if !corrective {
			if err := wallet.PolicyFor(w.Kind).Validate(w, proposed); err != nil {
				return Result{}, err
			}
		}

		entry := Transaction{
			ID:             uuid.NewString(),
			WalletID:       w.ID,
			Type:           intent.Type,
			Amount:         intent.Amount,
			BalanceBefore:  w.Balance,
			BalanceAfter:   proposed,
			ReferenceType:  intent.ReferenceType,
			ReferenceID:    intent.ReferenceID,
			IdempotencyKey: intent.IdempotencyKey,
			CreatedBy:      intent.CreatedBy,
			CreatedAt:      time.Now().UTC(),
		}

		err = p.log.AppendWithBalance(ctx, entry, w.Balance, wallet.CreditUsedFor(w.Kind, proposed))
		switch {
		case err == nil:
			return Result{WalletID: w.ID, TransactionID: entry.ID, BalanceAfter: proposed}, nil
		case errors.Is(err, wallet.ErrStaleBalance):
			continue
		case errors.Is(err, errDuplicateKey):
			// Another instance committed this key between our lookup and write.
			committed, findErr := p.log.FindByIdempotencyKey(ctx, intent.WalletID, intent.IdempotencyKey)
			if findErr != nil {
				return Result{}, fmt.Errorf("resolve duplicate key: %w", findErr)
			}
			if committed == nil {
				return Result{}, err
			}
			return replayResult(*committed), nil
		default:
			return Result{}, err
		}
	}

	return Result{}, ErrConflict
}

func replayResult(tx Transaction) Result {
	return Result{
		WalletID:      tx.WalletID,
		TransactionID: tx.ID,
		BalanceAfter:  tx.BalanceAfter,
		Replayed:      true,
	}
}
