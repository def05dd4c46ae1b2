package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists wallet records. There is deliberately no raw balance
// setter here: balances change only through the transaction log's
// compare-and-swap commit. SetCreditUsed exists solely for the reconciliation
// engine's derived-field resync and never touches the balance.
type Repository interface {
	Get(ctx context.Context, id string) (Wallet, error)
	GetByOwner(ctx context.Context, ownerID string, kind Kind) (Wallet, error)
	// GetOrCreate returns the wallet for (ownerID, kind), creating a zero-balance
	// one if absent. Safe to call concurrently; exactly one wallet survives.
	GetOrCreate(ctx context.Context, ownerID string, kind Kind) (Wallet, error)
	// ListIDs returns wallet ids, optionally filtered by kind (empty = all).
	ListIDs(ctx context.Context, kind Kind) ([]string, error)
	SetCreditLimit(ctx context.Context, id string, limit int64) error
	SetCreditUsed(ctx context.Context, id string, used int64) error
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const walletColumns = `id, owner_id, kind, balance, credit_limit, credit_used, created_at, updated_at`

// Get fetches a wallet by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
	return scanWallet(row)
}

// GetByOwner fetches the wallet for an (owner, kind) pair.
func (r *PostgresRepository) GetByOwner(ctx context.Context, ownerID string, kind Kind) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1 AND kind = $2`, ownerID, kind)
	return scanWallet(row)
}

// GetOrCreate returns the wallet for (owner, kind), inserting a fresh one if
// none exists. The unique index on (owner_id, kind) makes concurrent creation
// converge on a single row.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, ownerID string, kind Kind) (Wallet, error) {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, kind, balance, credit_limit, credit_used, created_at, updated_at)
        VALUES ($1, $2, $3, 0, 0, 0, $4, $4)
        ON CONFLICT (owner_id, kind) DO NOTHING`, uuid.NewString(), ownerID, kind, now)
	if err != nil {
		return Wallet{}, err
	}
	return r.GetByOwner(ctx, ownerID, kind)
}

// ListIDs returns wallet ids, optionally restricted to one kind.
func (r *PostgresRepository) ListIDs(ctx context.Context, kind Kind) ([]string, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if kind == "" {
		rows, err = r.db.Query(ctx, `SELECT id FROM wallets ORDER BY created_at`)
	} else {
		rows, err = r.db.Query(ctx, `SELECT id FROM wallets WHERE kind = $1 ORDER BY created_at`, kind)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetCreditLimit updates a partner wallet's credit line.
func (r *PostgresRepository) SetCreditLimit(ctx context.Context, id string, limit int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE wallets SET credit_limit = $2, updated_at = $3 WHERE id = $1`, id, limit, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCreditUsed corrects the stored derived credit usage.
func (r *PostgresRepository) SetCreditUsed(ctx context.Context, id string, used int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE wallets SET credit_used = $2, updated_at = $3 WHERE id = $1`, id, used, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	var createdAt, updatedAt time.Time
	err := row.Scan(&w.ID, &w.OwnerID, &w.Kind, &w.Balance, &w.CreditLimit, &w.CreditUsed, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.CreatedAt = createdAt.UTC()
	w.UpdatedAt = updatedAt.UTC()
	return w, nil
}
