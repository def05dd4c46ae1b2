package wallet

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates no wallet exists for the requested id or owner.
	ErrNotFound = errors.New("wallet not found")

	// ErrInsufficientFunds occurs when a debit would take a non-credit wallet negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCreditLimitExceeded occurs when a debit would breach a partner's credit line.
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")

	// ErrStaleBalance indicates a compare-and-swap write observed a balance that
	// changed since it was read.
	ErrStaleBalance = errors.New("stale balance")
)

// Kind identifies the economic actor a wallet belongs to. The set is closed;
// each kind carries its own balance policy.
type Kind string

const (
	KindGuide            Kind = "guide"
	KindPartnerCredit    Kind = "partner_credit"
	KindCustomer         Kind = "customer"
	KindCorporateDeposit Kind = "corporate_deposit"
)

// ParseKind validates a wallet kind supplied by a caller.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindGuide, KindPartnerCredit, KindCustomer, KindCorporateDeposit:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown wallet kind %q", s)
	}
}

// Wallet holds the balance for one (owner, kind) pair. Amounts are integers in
// the smallest currency unit. CreditLimit and CreditUsed are meaningful only
// for KindPartnerCredit; CreditUsed is derived from the balance and never set
// independently of a balance-changing transaction.
type Wallet struct {
	ID          string
	OwnerID     string
	Kind        Kind
	Balance     int64
	CreditLimit int64
	CreditUsed  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreditUsedFor derives the credit consumption implied by a balance. Non-credit
// kinds always report zero.
func CreditUsedFor(kind Kind, balance int64) int64 {
	if kind != KindPartnerCredit {
		return 0
	}
	if balance >= 0 {
		return 0
	}
	return -balance
}
