package credit

import (
	"errors"
	"time"
)

var (
	// ErrLimitBelowUsage rejects a limit change that would drop the credit line
	// below what the partner currently has outstanding.
	ErrLimitBelowUsage = errors.New("proposed limit is below current credit usage")

	// ErrChangeNotFound indicates no limit change exists for the given id.
	ErrChangeNotFound = errors.New("credit limit change not found")

	// ErrAlreadyDecided occurs when approving or rejecting a change that has
	// already been finalized.
	ErrAlreadyDecided = errors.New("credit limit change already decided")

	// ErrInvalidLimit rejects negative proposed limits.
	ErrInvalidLimit = errors.New("credit limit must not be negative")
)

// ChangeStatus tracks a limit change through its approval workflow.
type ChangeStatus string

const (
	StatusPending  ChangeStatus = "pending"
	StatusApproved ChangeStatus = "approved"
	StatusRejected ChangeStatus = "rejected"
)

// LimitChange is the audit record of one proposed credit-limit adjustment.
// Immutable once approved or rejected.
type LimitChange struct {
	ID           string
	WalletID     string
	OwnerID      string
	OldLimit     int64
	NewLimit     int64
	ChangeAmount int64
	Reason       string
	RequestedBy  string
	ApprovedBy   string
	Status       ChangeStatus
	CreatedAt    time.Time
	DecidedAt    *time.Time
}
