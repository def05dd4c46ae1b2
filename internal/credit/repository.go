package credit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists credit-limit change records.
type Repository interface {
	Create(ctx context.Context, change LimitChange) error
	Get(ctx context.Context, id string) (LimitChange, error)
	// Decide moves a pending change to its terminal status. Returns
	// ErrAlreadyDecided if the change is no longer pending.
	Decide(ctx context.Context, id string, status ChangeStatus, approvedBy string, decidedAt time.Time) error
	ListByOwner(ctx context.Context, ownerID string) ([]LimitChange, error)
}

// PostgresRepository stores limit changes in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed limit change repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const changeColumns = `id, wallet_id, owner_id, old_limit, new_limit, change_amount,
        reason, requested_by, approved_by, status, created_at, decided_at`

func (r *PostgresRepository) Create(ctx context.Context, change LimitChange) error {
	_, err := r.db.Exec(ctx, `INSERT INTO credit_limit_changes (`+changeColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		change.ID, change.WalletID, change.OwnerID, change.OldLimit, change.NewLimit, change.ChangeAmount,
		change.Reason, change.RequestedBy, nullableStr(change.ApprovedBy), change.Status,
		change.CreatedAt.UTC(), change.DecidedAt)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (LimitChange, error) {
	row := r.db.QueryRow(ctx, `SELECT `+changeColumns+` FROM credit_limit_changes WHERE id = $1`, id)
	return scanChange(row)
}

func (r *PostgresRepository) Decide(ctx context.Context, id string, status ChangeStatus, approvedBy string, decidedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE credit_limit_changes
        SET status = $2, approved_by = $3, decided_at = $4
        WHERE id = $1 AND status = $5`, id, status, approvedBy, decidedAt.UTC(), StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyDecided
	}
	return nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]LimitChange, error) {
	rows, err := r.db.Query(ctx, `SELECT `+changeColumns+` FROM credit_limit_changes
        WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []LimitChange
	for rows.Next() {
		change, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, rows.Err()
}

func scanChange(row pgx.Row) (LimitChange, error) {
	var ch LimitChange
	var approvedBy *string
	var createdAt time.Time
	var decidedAt *time.Time
	err := row.Scan(&ch.ID, &ch.WalletID, &ch.OwnerID, &ch.OldLimit, &ch.NewLimit, &ch.ChangeAmount,
		&ch.Reason, &ch.RequestedBy, &approvedBy, &ch.Status, &createdAt, &decidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LimitChange{}, ErrChangeNotFound
		}
		return LimitChange{}, err
	}
	if approvedBy != nil {
		ch.ApprovedBy = *approvedBy
	}
	ch.CreatedAt = createdAt.UTC()
	if decidedAt != nil {
		t := decidedAt.UTC()
		ch.DecidedAt = &t
	}
	return ch, nil
}

func nullableStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
