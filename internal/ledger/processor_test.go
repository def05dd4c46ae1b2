package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/santara-pay/santara_pay/internal/wallet"
)

func newTestProcessor(t *testing.T) (*Processor, *wallet.MemoryRepository, *MemoryLog) {
	t.Helper()
	wallets := wallet.NewMemoryRepository()
	log := NewMemoryLog(wallets)
	return NewProcessor(wallets, log, 0), wallets, log
}

func seedWallet(t *testing.T, wallets *wallet.MemoryRepository, kind wallet.Kind, balance int64) wallet.Wallet {
	t.Helper()
	ctx := context.Background()
	w, err := wallets.GetOrCreate(ctx, uuid.NewString(), kind)
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if balance != 0 {
		ok, err := wallets.CompareAndSwapBalance(w.ID, 0, balance, wallet.CreditUsedFor(kind, balance))
		if err != nil || !ok {
			t.Fatalf("seed balance: ok=%v err=%v", ok, err)
		}
		w, err = wallets.Get(ctx, w.ID)
		if err != nil {
			t.Fatalf("reload wallet: %v", err)
		}
	}
	return w
}

func TestApplyCreditAndDebit(t *testing.T) {
	proc, wallets, _ := newTestProcessor(t)
	ctx := context.Background()
	w := seedWallet(t, wallets, wallet.KindGuide, 0)

	res, err := proc.Apply(ctx, Intent{
		WalletID:       w.ID,
		Amount:         5_000,
		Type:           TypeEarning,
		IdempotencyKey: "trip-1-earning",
	})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if res.BalanceAfter != 5_000 {
		t.Fatalf("expected balance 5000, got %d", res.BalanceAfter)
	}

	res, err = proc.Apply(ctx, Intent{
		WalletID:       w.ID,
		Amount:         -2_000,
		Type:           TypeWithdrawRequest,
		IdempotencyKey: "wd-1",
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if res.BalanceAfter != 3_000 {
		t.Fatalf("expected balance 3000, got %d", res.BalanceAfter)
	}

	got, err := wallets.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if got.Balance != 3_000 {
		t.Fatalf("stored balance %d, want 3000", got.Balance)
	}
}

func TestApplyRecordsBalanceSnapshots(t *testing.T) {
	proc, wallets, log := newTestProcessor(t)
	ctx := context.Background()
	w := seedWallet(t, wallets, wallet.KindCustomer, 0)

	steps := []struct {
		amount int64
		typ    Type
		key    string
	}{
		{10_000, TypeTopup, "topup-1"},
		{-4_000, TypeBookingDebit, "booking-1"},
		{1_500, TypeRefundCredit, "refund-1"},
	}
	for _, s := range steps {
		if _, err := proc.Apply(ctx, Intent{WalletID: w.ID, Amount: s.amount, Type: s.typ, IdempotencyKey: s.key}); err != nil {
			t.Fatalf("apply %s: %v", s.typ, err)
		}
	}

	txs, err := log.Transactions(ctx, w.ID, Page{})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	var prev int64
	for i, tx := range txs {
		if tx.BalanceBefore != prev {
			t.Fatalf("tx %d: balance_before %d, want %d", i, tx.BalanceBefore, prev)
		}
		if tx.BalanceAfter != tx.BalanceBefore+tx.Amount {
			t.Fatalf("tx %d: balance_after %d does not chain", i, tx.BalanceAfter)
		}
		prev = tx.BalanceAfter
	}
	if prev != 7_500 {
		t.Fatalf("final balance %d, want 7500", prev)
	}
}

func TestApplyInsufficientFunds(t *testing.T) {
	proc, wallets, log := newTestProcessor(t)
	ctx := context.Background()
	w := seedWallet(t, wallets, wallet.KindCustomer, 1_000)

	_, err := proc.Apply(ctx, Intent{
		WalletID:       w.ID,
		Amount:         -1_001,
		Type:           TypeBookingDebit,
		IdempotencyKey: "booking-over",
	})
	if !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The rejection must leave no trace.
	got, _ := wallets.Get(ctx, w.ID)
	if got.Balance != 1_000 {
		t.Fatalf("balance changed on rejected debit: %d", got.Balance)
	}
	txs, _ := log.Transactions(ctx, w.ID, Page{})
	if len(txs) != 0 {
		t.Fatalf("rejected debit wrote %d transactions", len(txs))
	}
}

func TestApplyCreditLine(t *testing.T) {
	proc, wallets, _ := newTestProcessor(t)
	ctx := context.Background()
	w := seedWallet(t, wallets, wallet.KindPartnerCredit, 0)
	if err := wallets.SetCreditLimit(ctx, w.ID, 10_000); err != nil {
		t.Fatalf("set credit limit: %v", err)
	}

	res, err := proc.Apply(ctx, Intent{
		WalletID:       w.ID,
		Amount:         -10_000,
		Type:           TypeBookingDebit,
		IdempotencyKey: "booking-max",
	})
	if err != nil {
		t.Fatalf("debit to limit: %v", err)
	}
	if res.BalanceAfter != -10_000 {
		t.Fatalf("expected balance -10000, got %d", res.BalanceAfter)
	}

	got, _ := wallets.Get(ctx, w.ID)
	if got.CreditUsed != 10_000 {
		t.Fatalf("credit used %d, want 10000", got.CreditUsed)
	}

	_, err = proc.Apply(ctx, Intent{
		WalletID:       w.ID,
		Amount:         -1,
		Type:           TypeBookingDebit,
		IdempotencyKey: "booking-past-limit",
	})
	if !errors.Is(err, wallet.ErrCreditLimitExceeded) {
		t.Fatalf("expected ErrCreditLimitExceeded, got %v", err)
	}

	// Repayment restores headroom and shrinks usage.
	res, err = proc.Apply(ctx, Intent{
		WalletID:       w.ID,
		Amount:         4_000,
		Type:           TypeCreditRepayment,
		IdempotencyKey: "repay-1",
	})
	if err != nil {
		t.Fatalf("repayment: %v", err)
	}
	if res.BalanceAfter != -6_000 {
		t.Fatalf("expected balance -6000, got %d", res.BalanceAfter)
	}
	got, _ = wallets.Get(ctx, w.ID)
	if got.CreditUsed != 6_000 {
		t.Fatalf("credit used %d, want 6000", got.CreditUsed)
	}
}

func TestApplyIdempotentReplay(t *testing.T) {
	proc, wallets, log := newTestProcessor(t)
	ctx := context.Background()
	w := seedWallet(t, wallets, wallet.KindGuide, 0)

	intent := Intent{
		WalletID:       w.ID,
		Amount:         5_000,
		Type:           TypeEarning,
		IdempotencyKey: "trip-42-earning",
	}
	first, err := proc.Apply(ctx, intent)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if first.Replayed {
		t.Fatal("first apply marked replayed")
	}

	second, err := proc.Apply(ctx, intent)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.Replayed {
		t.Fatal("replay not marked")
	}
	if second.TransactionID != first.TransactionID || second.BalanceAfter != first.BalanceAfter {
		t.Fatalf("replay result diverged: %+v vs %+v", second, first)
	}

	txs, _ := log.Transactions(ctx, w.ID, Page{})
	if len(txs) != 1 {
		t.Fatalf("expected exactly 1 transaction, got %d", len(txs))
	}
	got, _ := wallets.Get(ctx, w.ID)
	if got.Balance != 5_000 {
		t.Fatalf("balance %d, want 5000 after replay", got.Balance)
	}
}

func TestApplyRejectsInvalidTypeAndSign(t *testing.T) {
	proc, wallets, _ := newTestProcessor(t)
	ctx := context.Background()
	guide := seedWallet(t, wallets, wallet.KindGuide, 1_000)

	cases := []struct {
		name   string
		intent Intent
		want   error
	}{
		{"topup on guide wallet", Intent{WalletID: guide.ID, Amount: 100, Type: TypeTopup, IdempotencyKey: "k1"}, ErrInvalidType},
		{"negative earning", Intent{WalletID: guide.ID, Amount: -100, Type: TypeEarning, IdempotencyKey: "k2"}, ErrInvalidAmount},
		{"positive withdraw request", Intent{WalletID: guide.ID, Amount: 100, Type: TypeWithdrawRequest, IdempotencyKey: "k3"}, ErrInvalidAmount},
		{"nonzero approval marker", Intent{WalletID: guide.ID, Amount: 10, Type: TypeWithdrawApproved, IdempotencyKey: "k4"}, ErrInvalidAmount},
		{"missing key", Intent{WalletID: guide.ID, Amount: 100, Type: TypeEarning}, ErrMissingIdempotencyKey},
	}
	for _, tc := range cases {
		if _, err := proc.Apply(ctx, tc.intent); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestApplyUnknownWallet(t *testing.T) {
	proc, _, _ := newTestProcessor(t)
	_, err := proc.Apply(context.Background(), Intent{
		WalletID:       uuid.NewString(),
		Amount:         100,
		Type:           TypeEarning,
		IdempotencyKey: "k",
	})
	if !errors.Is(err, wallet.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyConcurrentDebitsSerialize(t *testing.T) {
	proc, wallets, log := newTestProcessor(t)
	ctx := context.Background()
	w := seedWallet(t, wallets, wallet.KindCustomer, 10_000)

	const workers = 20
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = proc.Apply(ctx, Intent{
				WalletID:       w.ID,
				Amount:         -1_000,
				Type:           TypeBookingDebit,
				IdempotencyKey: uuid.NewString(),
			})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, wallet.ErrInsufficientFunds):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != 10 {
		t.Fatalf("accepted %d debits, want exactly 10", accepted)
	}

	got, _ := wallets.Get(ctx, w.ID)
	if got.Balance != 0 {
		t.Fatalf("final balance %d, want 0", got.Balance)
	}
	recorded, _ := log.RecordedBalance(ctx, w.ID)
	if recorded != 0 {
		t.Fatalf("log records balance %d, want 0", recorded)
	}
}

func TestApplyCorrectionSkipsPolicy(t *testing.T) {
	proc, wallets, _ := newTestProcessor(t)
	ctx := context.Background()
	w := seedWallet(t, wallets, wallet.KindCustomer, 500)

	unlock := proc.LockWallet(w.ID)
	res, err := proc.ApplyCorrection(ctx, w.ID, -800, "recon-test-1", "drift repair")
	unlock()
	if err != nil {
		t.Fatalf("correction: %v", err)
	}
	if res.BalanceAfter != -300 {
		t.Fatalf("expected balance -300, got %d", res.BalanceAfter)
	}
}
