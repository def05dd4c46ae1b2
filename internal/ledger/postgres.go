package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/santara-pay/santara_pay/internal/wallet"
)

const uniqueViolationCode = "23505"

// PostgresLog persists transactions in PostgreSQL. The transactions table has
// a unique index on (wallet_id, idempotency_key); balance and entry commit in
// a single database transaction so no partial write is ever observable.
type PostgresLog struct {
	db *pgxpool.Pool
}

// NewPostgresLog constructs a Postgres-backed transaction log.
func NewPostgresLog(db *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{db: db}
}

const txColumns = `id, wallet_id, type, amount, balance_before, balance_after,
        reference_type, reference_id, idempotency_key, created_by, created_at`

// FindByIdempotencyKey returns the committed transaction for (wallet, key),
// or nil when the key has not been used.
func (l *PostgresLog) FindByIdempotencyKey(ctx context.Context, walletID, key string) (*Transaction, error) {
	row := l.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions
        WHERE wallet_id = $1 AND idempotency_key = $2`, walletID, key)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// AppendWithBalance commits the entry and the wallet's new balance atomically.
// The conditional UPDATE doubles as the compare-and-swap: zero rows affected
// means either the wallet vanished or the balance moved underneath us.
func (l *PostgresLog) AppendWithBalance(ctx context.Context, entry Transaction, expectedBalance, newCreditUsed int64) error {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	tag, err := tx.Exec(ctx, `UPDATE wallets
        SET balance = $2, credit_used = $3, updated_at = $4
        WHERE id = $1 AND balance = $5`,
		entry.WalletID, entry.BalanceAfter, newCreditUsed, time.Now().UTC(), expectedBalance)
	if err != nil {
		return fmt.Errorf("swap balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)`, entry.WalletID).Scan(&exists); err != nil {
			return fmt.Errorf("check wallet: %w", err)
		}
		if !exists {
			return wallet.ErrNotFound
		}
		return wallet.ErrStaleBalance
	}

	_, err = tx.Exec(ctx, `INSERT INTO transactions (`+txColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.WalletID, entry.Type, entry.Amount, entry.BalanceBefore, entry.BalanceAfter,
		nullable(entry.ReferenceType), nullable(entry.ReferenceID), entry.IdempotencyKey,
		entry.CreatedBy, entry.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return errDuplicateKey
		}
		return fmt.Errorf("append transaction: %w", err)
	}

	return tx.Commit(ctx)
}

// Transactions pages a wallet's history, oldest first, keyed after the cursor
// transaction when one is supplied.
func (l *PostgresLog) Transactions(ctx context.Context, walletID string, page Page) ([]Transaction, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	if page.AfterID == "" {
		rows, err = l.db.Query(ctx, `SELECT `+txColumns+` FROM transactions
            WHERE wallet_id = $1
            ORDER BY created_at, id
            LIMIT $2`, walletID, limit)
	} else {
		rows, err = l.db.Query(ctx, `SELECT `+txColumns+` FROM transactions
            WHERE wallet_id = $1
              AND (created_at, id) > (SELECT created_at, id FROM transactions WHERE id = $2)
            ORDER BY created_at, id
            LIMIT $3`, walletID, page.AfterID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// RecordedBalance reads the balance_after of the wallet's latest entry.
func (l *PostgresLog) RecordedBalance(ctx context.Context, walletID string) (int64, error) {
	var balance int64
	err := l.db.QueryRow(ctx, `
		SELECT COALESCE((
			SELECT balance_after FROM transactions
			WHERE wallet_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		), 0)`, walletID).Scan(&balance)
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var tx Transaction
	var refType, refID *string
	var createdAt time.Time
	err := row.Scan(&tx.ID, &tx.WalletID, &tx.Type, &tx.Amount, &tx.BalanceBefore, &tx.BalanceAfter,
		&refType, &refID, &tx.IdempotencyKey, &tx.CreatedBy, &createdAt)
	if err != nil {
		return Transaction{}, err
	}
	if refType != nil {
		tx.ReferenceType = *refType
	}
	if refID != nil {
		tx.ReferenceID = *refID
	}
	tx.CreatedAt = createdAt.UTC()
	return tx, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
