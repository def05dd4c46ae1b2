package ledger

import "sync"

// lockTable hands out one mutex per wallet id so unrelated wallets apply
// transactions fully in parallel while same-wallet intents serialize.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the wallet's mutex and returns the release func.
func (t *lockTable) acquire(walletID string) func() {
	t.mu.Lock()
	l, ok := t.locks[walletID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[walletID] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}
