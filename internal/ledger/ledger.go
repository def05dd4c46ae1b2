package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/santara-pay/santara_pay/internal/wallet"
)

var (
	// ErrConflict indicates compare-and-swap retries were exhausted under
	// contention. The outcome is unknown to the caller, who should retry with
	// the same idempotency key.
	ErrConflict = errors.New("wallet update conflict")

	// ErrInvalidType occurs when a transaction type is unknown or not permitted
	// for the wallet's kind.
	ErrInvalidType = errors.New("invalid transaction type")

	// ErrInvalidAmount occurs when an amount's sign does not match the
	// transaction type's convention, or a caller supplies a non-positive amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrMissingIdempotencyKey occurs when a ledger intent carries no key.
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")

	// errDuplicateKey signals the log already holds this (wallet, key) pair.
	// Surfaces only on the Postgres path when two instances race past the
	// in-process lock; the processor resolves it as a replay.
	errDuplicateKey = errors.New("duplicate idempotency key")
)

// Type enumerates the business reasons a balance can change. The sets are
// closed per wallet kind; callers cannot invent new types.
type Type string

const (
	TypeEarning          Type = "earning"
	TypeWithdrawRequest  Type = "withdraw_request"
	TypeWithdrawApproved Type = "withdraw_approved"
	TypeWithdrawRejected Type = "withdraw_rejected"
	TypeTopup            Type = "topup"
	TypeBookingDebit     Type = "booking_debit"
	TypeRefundCredit     Type = "refund_credit"
	TypeCreditRepayment  Type = "credit_repayment"
	TypeAdjustment       Type = "adjustment"
)

type signRule int

const (
	signPositive signRule = iota // amount must be > 0
	signNegative                 // amount must be < 0
	signZero                     // amount must be 0 (marker entries)
	signAny                      // corrective entries carry the drift delta
)

var signRules = map[Type]signRule{
	TypeEarning:          signPositive,
	TypeTopup:            signPositive,
	TypeRefundCredit:     signPositive,
	TypeCreditRepayment:  signPositive,
	TypeWithdrawRejected: signPositive,
	TypeWithdrawRequest:  signNegative,
	TypeBookingDebit:     signNegative,
	TypeWithdrawApproved: signZero,
	TypeAdjustment:       signAny,
}

var kindTypes = map[wallet.Kind]map[Type]bool{
	wallet.KindGuide: {
		TypeEarning:          true,
		TypeWithdrawRequest:  true,
		TypeWithdrawApproved: true,
		TypeWithdrawRejected: true,
		TypeAdjustment:       true,
	},
	wallet.KindCustomer: {
		TypeTopup:        true,
		TypeBookingDebit: true,
		TypeRefundCredit: true,
		TypeAdjustment:   true,
	},
	wallet.KindPartnerCredit: {
		TypeTopup:           true,
		TypeBookingDebit:    true,
		TypeRefundCredit:    true,
		TypeCreditRepayment: true,
		TypeAdjustment:      true,
	},
	wallet.KindCorporateDeposit: {
		TypeTopup:        true,
		TypeBookingDebit: true,
		TypeRefundCredit: true,
		TypeAdjustment:   true,
	},
}

// ValidateType checks that a transaction type belongs to the wallet kind and
// that the amount's sign matches the type's convention.
func ValidateType(kind wallet.Kind, t Type, amount int64) error {
	allowed, ok := kindTypes[kind]
	if !ok || !allowed[t] {
		return ErrInvalidType
	}
	switch signRules[t] {
	case signPositive:
		if amount <= 0 {
			return ErrInvalidAmount
		}
	case signNegative:
		if amount >= 0 {
			return ErrInvalidAmount
		}
	case signZero:
		if amount != 0 {
			return ErrInvalidAmount
		}
	}
	return nil
}

// IsCredit reports whether a type's convention is a positive amount. Used by
// the service layer to apply the sign for callers submitting magnitudes.
func IsCredit(t Type) bool {
	return signRules[t] == signPositive
}

// IsDebit reports whether a type's convention is a negative amount.
func IsDebit(t Type) bool {
	return signRules[t] == signNegative
}

// Transaction is one applied balance mutation. Rows are append-only and
// immutable; corrections are new adjustment rows, never edits.
type Transaction struct {
	ID             string
	WalletID       string
	Type           Type
	Amount         int64
	BalanceBefore  int64
	BalanceAfter   int64
	ReferenceType  string
	ReferenceID    string
	IdempotencyKey string
	CreatedBy      string
	CreatedAt      time.Time
}

// Result captures the outcome of an applied ledger intent. Replayed is true
// when the idempotency key had already been committed and the stored outcome
// was returned without re-applying.
type Result struct {
	WalletID      string
	TransactionID string
	BalanceAfter  int64
	Replayed      bool
}

// Page selects a slice of a wallet's history. Transactions are ordered by
// created_at ascending with the transaction id as tiebreaker, and AfterID
// carries the cursor so pages stay stable while new entries append.
type Page struct {
	AfterID string
	Limit   int
}

// Log is the append-only transaction record and the sole path through which a
// wallet balance changes. AppendWithBalance is the compare-and-swap write
// primitive: it persists the entry and the new balance as one unit, failing
// with wallet.ErrStaleBalance if the stored balance no longer matches
// expectedBalance.
type Log interface {
	FindByIdempotencyKey(ctx context.Context, walletID, key string) (*Transaction, error)
	AppendWithBalance(ctx context.Context, entry Transaction, expectedBalance, newCreditUsed int64) error
	Transactions(ctx context.Context, walletID string, page Page) ([]Transaction, error)
	// RecordedBalance returns the balance after the wallet's latest entry, or
	// zero for an empty log. The log, not the stored balance, is the source of
	// truth during reconciliation.
	RecordedBalance(ctx context.Context, walletID string) (int64, error)
}
