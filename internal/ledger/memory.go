package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/santara-pay/santara_pay/internal/wallet"
)

// MemoryLog is an in-memory transaction log for tests and dev mode. It commits
// balances through the memory wallet repository's compare-and-swap so the two
// stores stay consistent the same way the Postgres pair does.
type MemoryLog struct {
	mu      sync.RWMutex
	wallets *wallet.MemoryRepository
	byKey   map[logKey]int
	entries []Transaction
}

type logKey struct {
	walletID string
	key      string
}

// NewMemoryLog builds a log bound to the given in-memory wallet repository.
func NewMemoryLog(wallets *wallet.MemoryRepository) *MemoryLog {
	return &MemoryLog{
		wallets: wallets,
		byKey:   make(map[logKey]int),
	}
}

func (l *MemoryLog) FindByIdempotencyKey(_ context.Context, walletID, key string) (*Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.byKey[logKey{walletID, key}]
	if !ok {
		return nil, nil
	}
	tx := l.entries[idx]
	return &tx, nil
}

func (l *MemoryLog) AppendWithBalance(_ context.Context, entry Transaction, expectedBalance, newCreditUsed int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byKey[logKey{entry.WalletID, entry.IdempotencyKey}]; exists {
		return errDuplicateKey
	}

	ok, err := l.wallets.CompareAndSwapBalance(entry.WalletID, expectedBalance, entry.BalanceAfter, newCreditUsed)
	if err != nil {
		return err
	}
	if !ok {
		return wallet.ErrStaleBalance
	}

	l.entries = append(l.entries, entry)
	l.byKey[logKey{entry.WalletID, entry.IdempotencyKey}] = len(l.entries) - 1
	return nil
}

func (l *MemoryLog) Transactions(_ context.Context, walletID string, page Page) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}

	var txs []Transaction
	for _, tx := range l.entries {
		if tx.WalletID == walletID {
			txs = append(txs, tx)
		}
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].ID < txs[j].ID
		}
		return txs[i].CreatedAt.Before(txs[j].CreatedAt)
	})

	start := 0
	if page.AfterID != "" {
		for i, tx := range txs {
			if tx.ID == page.AfterID {
				start = i + 1
				break
			}
		}
	}
	if start >= len(txs) {
		return nil, nil
	}
	end := start + limit
	if end > len(txs) {
		end = len(txs)
	}
	return txs[start:end], nil
}

func (l *MemoryLog) RecordedBalance(_ context.Context, walletID string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var balance int64
	for _, tx := range l.entries {
		if tx.WalletID == walletID {
			balance = tx.BalanceAfter
		}
	}
	return balance, nil
}
