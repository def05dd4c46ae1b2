package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/santara-pay/santara_pay/internal/ledger"
	"github.com/santara-pay/santara_pay/internal/notification"
	"github.com/santara-pay/santara_pay/internal/wallet"
)

const defaultWorkers = 4

// OwnerSource names owners that have had ledger-worthy activity (a completed
// trip, an accepted booking) and therefore must have a wallet. It is provided
// by an external collaborator; the engine only consumes it.
type OwnerSource interface {
	ActiveOwners(ctx context.Context, kind wallet.Kind) ([]string, error)
}

// Scope selects which wallets a run covers: one wallet, one kind, or all.
type Scope struct {
	WalletID string
	Kind     wallet.Kind
}

// Report summarizes a reconciliation run. A failure on one wallet never
// blocks the rest; failures are counted and logged.
type Report struct {
	Checked        int
	Repaired       int
	CreditSynced   int
	WalletsCreated int
	Failed         int
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Engine recomputes each wallet's balance from its transaction log and
// repairs drift through the corrective write path. Idempotent: a second run
// over a healthy ledger writes nothing.
type Engine struct {
	wallets   wallet.Repository
	log       ledger.Log
	processor *ledger.Processor
	owners    OwnerSource
	notifier  notification.Notifier
	cache     *wallet.Cache
	logger    *slog.Logger
	workers   int
}

// NewEngine builds a reconciliation engine. owners, notifier and cache may be
// nil; workers bounds the pool so runs never starve live traffic.
func NewEngine(wallets wallet.Repository, log ledger.Log, processor *ledger.Processor,
	owners OwnerSource, notifier notification.Notifier, cache *wallet.Cache,
	logger *slog.Logger, workers int) *Engine {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Engine{
		wallets:   wallets,
		log:       log,
		processor: processor,
		owners:    owners,
		notifier:  notifier,
		cache:     cache,
		logger:    logger,
		workers:   workers,
	}
}

// Run reconciles every wallet in scope.
func (e *Engine) Run(ctx context.Context, scope Scope) (Report, error) {
	report := Report{StartedAt: time.Now().UTC()}

	if scope.WalletID == "" {
		created, err := e.repairMissingWallets(ctx, scope.Kind)
		if err != nil {
			// Missing-wallet repair failing must not stop balance repair.
			e.logger.Warn("missing wallet repair failed", "error", err)
		}
		report.WalletsCreated = created
	}

	ids, err := e.walletIDs(ctx, scope)
	if err != nil {
		return report, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			outcome, err := e.reconcileWallet(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			report.Checked++
			if err != nil {
				report.Failed++
				e.logger.Error("wallet reconciliation failed", "wallet_id", id, "error", err)
				return nil
			}
			if outcome.repaired {
				report.Repaired++
			}
			if outcome.creditSynced {
				report.CreditSynced++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	report.FinishedAt = time.Now().UTC()
	e.logger.Info("reconciliation run finished",
		"checked", report.Checked,
		"repaired", report.Repaired,
		"credit_synced", report.CreditSynced,
		"wallets_created", report.WalletsCreated,
		"failed", report.Failed,
	)
	return report, nil
}

type outcome struct {
	repaired     bool
	creditSynced bool
}

// reconcileWallet holds the wallet's lock for the whole recompute-and-repair
// sequence so live intents cannot interleave. At most one lock is held at a
// time across the engine.
func (e *Engine) reconcileWallet(ctx context.Context, walletID string) (outcome, error) {
	unlock := e.processor.LockWallet(walletID)
	defer unlock()

	var out outcome

	w, err := e.wallets.Get(ctx, walletID)
	if err != nil {
		return out, err
	}

	// The transaction log, not the stored balance, is the source of truth.
	expected, err := e.log.RecordedBalance(ctx, walletID)
	if err != nil {
		return out, fmt.Errorf("recompute balance: %w", err)
	}

	if expected != w.Balance {
		delta := expected - w.Balance
		if _, err := e.processor.ApplyCorrection(ctx, walletID, delta, correctionKey(),
			fmt.Sprintf("balance drift: stored %d, recorded %d", w.Balance, expected)); err != nil {
			return out, fmt.Errorf("repair drift: %w", err)
		}
		out.repaired = true
		e.emit(ctx, notification.Event{
			Kind:    notification.KindBalanceDrift,
			Subject: walletID,
			Body:    fmt.Sprintf("balance drifted from transaction history for owner %s", w.OwnerID),
			Amount:  delta,
		})
		w, err = e.wallets.Get(ctx, walletID)
		if err != nil {
			return out, err
		}
	}

	// A negative balance on a non-credit wallet should be structurally
	// impossible; zero it out and flag the owner for investigation rather
	// than silently writing it off.
	if w.Kind != wallet.KindPartnerCredit && w.Balance < 0 {
		if _, err := e.processor.ApplyCorrection(ctx, walletID, -w.Balance,
			correctionKey(), "negative balance repair"); err != nil {
			return out, fmt.Errorf("repair negative balance: %w", err)
		}
		out.repaired = true
		e.emit(ctx, notification.Event{
			Kind:    notification.KindNegativeBalance,
			Subject: walletID,
			Body:    fmt.Sprintf("owner %s wallet found below zero; zeroed, needs investigation", w.OwnerID),
			Amount:  w.Balance,
		})
		w, err = e.wallets.Get(ctx, walletID)
		if err != nil {
			return out, err
		}
	}

	// Derived-field fix only; never touches the balance.
	if w.Kind == wallet.KindPartnerCredit {
		if used := wallet.CreditUsedFor(w.Kind, w.Balance); used != w.CreditUsed {
			if err := e.wallets.SetCreditUsed(ctx, walletID, used); err != nil {
				return out, fmt.Errorf("resync credit used: %w", err)
			}
			out.creditSynced = true
		}
	}

	if out.repaired {
		_ = e.cache.Invalidate(ctx, w.OwnerID, w.Kind)
	}
	return out, nil
}

func (e *Engine) repairMissingWallets(ctx context.Context, kind wallet.Kind) (int, error) {
	if e.owners == nil {
		return 0, nil
	}
	kinds := []wallet.Kind{kind}
	if kind == "" {
		kinds = []wallet.Kind{wallet.KindGuide, wallet.KindPartnerCredit, wallet.KindCustomer, wallet.KindCorporateDeposit}
	}

	created := 0
	for _, k := range kinds {
		owners, err := e.owners.ActiveOwners(ctx, k)
		if err != nil {
			return created, fmt.Errorf("list active owners for %s: %w", k, err)
		}
		for _, ownerID := range owners {
			if _, err := e.wallets.GetByOwner(ctx, ownerID, k); err == nil {
				continue
			}
			if _, err := e.wallets.GetOrCreate(ctx, ownerID, k); err != nil {
				return created, fmt.Errorf("create wallet for owner %s: %w", ownerID, err)
			}
			created++
			e.logger.Info("created missing wallet", "owner_id", ownerID, "kind", k)
		}
	}
	return created, nil
}

func (e *Engine) walletIDs(ctx context.Context, scope Scope) ([]string, error) {
	if scope.WalletID != "" {
		if _, err := e.wallets.Get(ctx, scope.WalletID); err != nil {
			return nil, err
		}
		return []string{scope.WalletID}, nil
	}
	return e.wallets.ListIDs(ctx, scope.Kind)
}

func (e *Engine) emit(ctx context.Context, event notification.Event) {
	if e.notifier == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := e.notifier.Send(ctx, event); err != nil {
		e.logger.Warn("alert emission failed", "kind", event.Kind, "error", err)
	}
}

// correctionKey returns a fresh idempotency key for a corrective entry. The
// engine's recompute-then-diff loop, not key reuse, is what makes repeated
// runs idempotent.
func correctionKey() string {
	return "recon-" + uuid.NewString()
}
