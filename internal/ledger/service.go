package ledger

import (
	"context"
	"time"

	"github.com/santara-pay/santara_pay/internal/wallet"
)

// Service is the ledger's face toward collaborators (booking settlement,
// payout workers, refund issuance, topups). Callers address wallets by
// (owner, kind); wallets are created on first legitimate use.
type Service struct {
	wallets   wallet.Repository
	processor *Processor
	log       Log
	cache     *wallet.Cache
}

// NewService wires the owner-level ledger operations. cache may be nil.
func NewService(wallets wallet.Repository, processor *Processor, log Log, cache *wallet.Cache) *Service {
	return &Service{wallets: wallets, processor: processor, log: log, cache: cache}
}

// ApplyInput carries an owner-addressed ledger intent. Amount is the positive
// magnitude; Credit and Debit apply the sign for the transaction type.
type ApplyInput struct {
	OwnerID        string
	Kind           wallet.Kind
	Amount         int64
	Type           Type
	IdempotencyKey string
	ReferenceType  string
	ReferenceID    string
	Actor          string
}

// Balance is a point-in-time view of an owner's funds.
type Balance struct {
	OwnerID string
	Kind    wallet.Kind
	Amount  int64
	AsOf    time.Time
}

// Credit adds funds to the owner's wallet, creating it on first use.
func (s *Service) Credit(ctx context.Context, in ApplyInput) (Result, error) {
	if in.Amount <= 0 {
		return Result{}, ErrInvalidAmount
	}
	if !IsCredit(in.Type) {
		return Result{}, ErrInvalidType
	}
	return s.apply(ctx, in, in.Amount)
}

// Debit removes funds from the owner's wallet. The wallet kind's policy
// decides whether the debit is allowed; over-limit debits are rejected, never
// clamped.
func (s *Service) Debit(ctx context.Context, in ApplyInput) (Result, error) {
	if in.Amount <= 0 {
		return Result{}, ErrInvalidAmount
	}
	if !IsDebit(in.Type) {
		return Result{}, ErrInvalidType
	}
	return s.apply(ctx, in, -in.Amount)
}

// ConfirmWithdrawal appends the zero-amount approval marker closing out a
// guide's withdrawal hold. The funds already left the balance with the
// withdraw_request debit.
func (s *Service) ConfirmWithdrawal(ctx context.Context, in ApplyInput) (Result, error) {
	in.Type = TypeWithdrawApproved
	in.Kind = wallet.KindGuide
	return s.apply(ctx, in, 0)
}

func (s *Service) apply(ctx context.Context, in ApplyInput, signed int64) (Result, error) {
	w, err := s.wallets.GetOrCreate(ctx, in.OwnerID, in.Kind)
	if err != nil {
		return Result{}, err
	}

	res, err := s.processor.Apply(ctx, Intent{
		WalletID:       w.ID,
		Amount:         signed,
		Type:           in.Type,
		IdempotencyKey: in.IdempotencyKey,
		ReferenceType:  in.ReferenceType,
		ReferenceID:    in.ReferenceID,
		CreatedBy:      in.Actor,
	})
	if err != nil {
		return Result{}, err
	}

	// Best effort: a failed refresh only means the next read goes to the store.
	_ = s.cache.SetBalance(ctx, in.OwnerID, in.Kind, res.BalanceAfter)

	return res, nil
}

// GetBalance reads the owner's balance through the cache when one is wired.
func (s *Service) GetBalance(ctx context.Context, ownerID string, kind wallet.Kind) (Balance, error) {
	// Cache miss and cache trouble both fall through to the store.
	if amount, err := s.cache.GetBalance(ctx, ownerID, kind); err == nil {
		return Balance{OwnerID: ownerID, Kind: kind, Amount: amount, AsOf: time.Now().UTC()}, nil
	}

	w, err := s.wallets.GetByOwner(ctx, ownerID, kind)
	if err != nil {
		return Balance{}, err
	}
	_ = s.cache.SetBalance(ctx, ownerID, kind, w.Balance)
	return Balance{OwnerID: ownerID, Kind: kind, Amount: w.Balance, AsOf: time.Now().UTC()}, nil
}

// GetHistory pages the owner's transactions, oldest first.
func (s *Service) GetHistory(ctx context.Context, ownerID string, kind wallet.Kind, page Page) ([]Transaction, error) {
	w, err := s.wallets.GetByOwner(ctx, ownerID, kind)
	if err != nil {
		return nil, err
	}
	return s.log.Transactions(ctx, w.ID, page)
}
