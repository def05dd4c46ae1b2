package budget

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no budget exists for the requested scope.
	ErrNotFound = errors.New("budget not found")

	// ErrExists rejects allocating a budget for a scope that already has one.
	ErrExists = errors.New("budget already allocated for scope")

	// ErrReservationNotFound indicates no reservation carries the reference.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrAlreadyFinalized occurs when committing a released reservation or
	// releasing a committed one.
	ErrAlreadyFinalized = errors.New("reservation already finalized")

	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrStaleAmounts indicates a compare-and-swap write observed amounts that
	// changed since they were read.
	ErrStaleAmounts = errors.New("stale budget amounts")

	// errDuplicateEntry signals an entry with this (budget, kind, reference)
	// already exists; resolved as a replay.
	errDuplicateEntry = errors.New("duplicate budget entry")
)

// Scope addresses one department's budget within a fiscal period.
type Scope struct {
	CompanyID     string
	Department    string
	FiscalYear    int
	FiscalQuarter int
}

// Budget caps a department's spending for a fiscal period. The cap is soft:
// spend may exceed the allocation, but doing so raises an alert rather than
// blocking, since real-world spend can overrun pending a manager override.
type Budget struct {
	ID              string
	Scope           Scope
	AllocatedAmount int64
	SpentAmount     int64
	PendingAmount   int64
	AlertThreshold  float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Committed returns spent plus pending, the figure alert thresholds watch.
func (b Budget) Committed() int64 {
	return b.SpentAmount + b.PendingAmount
}

// Utilization returns committed spend as a fraction of the allocation.
func (b Budget) Utilization() float64 {
	if b.AllocatedAmount <= 0 {
		return 0
	}
	return float64(b.Committed()) / float64(b.AllocatedAmount)
}

// EntryKind distinguishes the two-phase booking steps.
type EntryKind string

const (
	EntryReserve EntryKind = "reserve"
	EntryCommit  EntryKind = "commit"
	EntryRelease EntryKind = "release"
)

// Entry records one budget mutation with the same before/after discipline the
// wallet ledger uses. Entries are append-only; a reservation's lifecycle is
// derived from the entries sharing its reference.
type Entry struct {
	ID            string
	BudgetID      string
	Kind          EntryKind
	Amount        int64
	SpentBefore   int64
	SpentAfter    int64
	PendingBefore int64
	PendingAfter  int64
	Reference     string
	CreatedAt     time.Time
}
