package credit

import (
	"context"
	"errors"
	"testing"

	"github.com/santara-pay/santara_pay/internal/ledger"
	"github.com/santara-pay/santara_pay/internal/wallet"
)

func newTestManager(t *testing.T) (*Manager, *ledger.Processor, *wallet.MemoryRepository) {
	t.Helper()
	wallets := wallet.NewMemoryRepository()
	log := ledger.NewMemoryLog(wallets)
	proc := ledger.NewProcessor(wallets, log, 0)
	return NewManager(wallets, NewMemoryRepository(), proc), proc, wallets
}

func seedPartner(t *testing.T, wallets *wallet.MemoryRepository, ownerID string, limit int64) wallet.Wallet {
	t.Helper()
	w, err := wallets.GetOrCreate(context.Background(), ownerID, wallet.KindPartnerCredit)
	if err != nil {
		t.Fatalf("create partner wallet: %v", err)
	}
	if err := wallets.SetCreditLimit(context.Background(), w.ID, limit); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	return w
}

func TestProposeAndApprove(t *testing.T) {
	mgr, _, wallets := newTestManager(t)
	ctx := context.Background()
	w := seedPartner(t, wallets, "mitra-1", 50_000)

	change, err := mgr.Propose(ctx, ProposeInput{
		OwnerID:     "mitra-1",
		NewLimit:    80_000,
		Reason:      "seasonal volume increase",
		RequestedBy: "account-manager-3",
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if change.Status != StatusPending {
		t.Fatalf("expected pending, got %s", change.Status)
	}
	if change.OldLimit != 50_000 || change.ChangeAmount != 30_000 {
		t.Fatalf("snapshot wrong: old=%d delta=%d", change.OldLimit, change.ChangeAmount)
	}

	decided, err := mgr.Approve(ctx, change.ID, "risk-lead-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if decided.Status != StatusApproved || decided.ApprovedBy != "risk-lead-1" {
		t.Fatalf("decision not recorded: %+v", decided)
	}

	got, _ := wallets.Get(ctx, w.ID)
	if got.CreditLimit != 80_000 {
		t.Fatalf("limit %d, want 80000", got.CreditLimit)
	}
}

func TestApproveRejectsLimitBelowUsage(t *testing.T) {
	mgr, proc, wallets := newTestManager(t)
	ctx := context.Background()
	w := seedPartner(t, wallets, "mitra-2", 50_000)

	// Run usage up to 30k through the ledger.
	if _, err := proc.Apply(ctx, ledger.Intent{
		WalletID:       w.ID,
		Amount:         -30_000,
		Type:           ledger.TypeBookingDebit,
		IdempotencyKey: "booking-1",
	}); err != nil {
		t.Fatalf("seed usage: %v", err)
	}

	change, err := mgr.Propose(ctx, ProposeInput{OwnerID: "mitra-2", NewLimit: 20_000, RequestedBy: "am-1"})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	if _, err := mgr.Approve(ctx, change.ID, "risk-1"); !errors.Is(err, ErrLimitBelowUsage) {
		t.Fatalf("expected ErrLimitBelowUsage, got %v", err)
	}

	// The attempt is recorded as a rejection and the limit is untouched.
	stored, err := mgr.changes.Get(ctx, change.ID)
	if err != nil {
		t.Fatalf("get change: %v", err)
	}
	if stored.Status != StatusRejected {
		t.Fatalf("expected rejected, got %s", stored.Status)
	}
	got, _ := wallets.Get(ctx, w.ID)
	if got.CreditLimit != 50_000 {
		t.Fatalf("limit %d, want unchanged 50000", got.CreditLimit)
	}
}

func TestApproveTwiceFails(t *testing.T) {
	mgr, _, wallets := newTestManager(t)
	ctx := context.Background()
	seedPartner(t, wallets, "mitra-3", 10_000)

	change, err := mgr.Propose(ctx, ProposeInput{OwnerID: "mitra-3", NewLimit: 15_000, RequestedBy: "am-1"})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := mgr.Approve(ctx, change.ID, "risk-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := mgr.Approve(ctx, change.ID, "risk-2"); !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
	if _, err := mgr.Reject(ctx, change.ID, "risk-2"); !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("reject after approve: expected ErrAlreadyDecided, got %v", err)
	}
}

func TestProposeValidation(t *testing.T) {
	mgr, _, wallets := newTestManager(t)
	ctx := context.Background()
	seedPartner(t, wallets, "mitra-4", 10_000)

	if _, err := mgr.Propose(ctx, ProposeInput{OwnerID: "mitra-4", NewLimit: -1}); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("negative limit: expected ErrInvalidLimit, got %v", err)
	}
	if _, err := mgr.Propose(ctx, ProposeInput{OwnerID: "no-such-partner", NewLimit: 5_000}); !errors.Is(err, wallet.ErrNotFound) {
		t.Fatalf("unknown partner: expected ErrNotFound, got %v", err)
	}
}

func TestHistoryOrdered(t *testing.T) {
	mgr, _, wallets := newTestManager(t)
	ctx := context.Background()
	seedPartner(t, wallets, "mitra-5", 10_000)

	for _, limit := range []int64{12_000, 14_000, 16_000} {
		if _, err := mgr.Propose(ctx, ProposeInput{OwnerID: "mitra-5", NewLimit: limit, RequestedBy: "am-1"}); err != nil {
			t.Fatalf("propose %d: %v", limit, err)
		}
	}

	changes, err := mgr.History(ctx, "mitra-5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	if changes[0].NewLimit != 12_000 || changes[2].NewLimit != 16_000 {
		t.Fatalf("history out of order: %d .. %d", changes[0].NewLimit, changes[2].NewLimit)
	}
}
