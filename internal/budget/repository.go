package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

// Repository persists budgets and their entries. AppendWithAmounts is the
// sole path through which spent/pending change, mirroring the wallet ledger's
// compare-and-swap commit.
type Repository interface {
	Create(ctx context.Context, b Budget) error
	GetByScope(ctx context.Context, scope Scope) (Budget, error)
	// AppendWithAmounts commits the entry and the budget's new amounts as one
	// unit. Fails with ErrStaleAmounts when the stored amounts no longer match
	// the expected pair.
	AppendWithAmounts(ctx context.Context, entry Entry, expectedSpent, expectedPending int64) error
	// EntriesByReference returns every entry recorded for a reservation
	// reference, oldest first.
	EntriesByReference(ctx context.Context, budgetID, reference string) ([]Entry, error)
}

// PostgresRepository stores budgets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed budget repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const budgetColumns = `id, company_id, department, fiscal_year, fiscal_quarter,
        allocated_amount, spent_amount, pending_amount, alert_threshold, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, b Budget) error {
	_, err := r.db.Exec(ctx, `INSERT INTO budgets (`+budgetColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.Scope.CompanyID, b.Scope.Department, b.Scope.FiscalYear, b.Scope.FiscalQuarter,
		b.AllocatedAmount, b.SpentAmount, b.PendingAmount, b.AlertThreshold,
		b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrExists
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) GetByScope(ctx context.Context, scope Scope) (Budget, error) {
	row := r.db.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets
        WHERE company_id = $1 AND department = $2 AND fiscal_year = $3 AND fiscal_quarter = $4`,
		scope.CompanyID, scope.Department, scope.FiscalYear, scope.FiscalQuarter)
	return scanBudget(row)
}

func (r *PostgresRepository) AppendWithAmounts(ctx context.Context, entry Entry, expectedSpent, expectedPending int64) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	tag, err := tx.Exec(ctx, `UPDATE budgets
        SET spent_amount = $2, pending_amount = $3, updated_at = $4
        WHERE id = $1 AND spent_amount = $5 AND pending_amount = $6`,
		entry.BudgetID, entry.SpentAfter, entry.PendingAfter, time.Now().UTC(),
		expectedSpent, expectedPending)
	if err != nil {
		return fmt.Errorf("swap amounts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM budgets WHERE id = $1)`, entry.BudgetID).Scan(&exists); err != nil {
			return fmt.Errorf("check budget: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStaleAmounts
	}

	_, err = tx.Exec(ctx, `INSERT INTO budget_entries
        (id, budget_id, kind, amount, spent_before, spent_after, pending_before, pending_after, reference, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.BudgetID, entry.Kind, entry.Amount,
		entry.SpentBefore, entry.SpentAfter, entry.PendingBefore, entry.PendingAfter,
		entry.Reference, entry.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return errDuplicateEntry
		}
		return fmt.Errorf("append budget entry: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) EntriesByReference(ctx context.Context, budgetID, reference string) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT id, budget_id, kind, amount,
            spent_before, spent_after, pending_before, pending_after, reference, created_at
        FROM budget_entries
        WHERE budget_id = $1 AND reference = $2
        ORDER BY created_at, id`, budgetID, reference)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.BudgetID, &e.Kind, &e.Amount,
			&e.SpentBefore, &e.SpentAfter, &e.PendingBefore, &e.PendingAfter,
			&e.Reference, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanBudget(row pgx.Row) (Budget, error) {
	var b Budget
	var createdAt, updatedAt time.Time
	err := row.Scan(&b.ID, &b.Scope.CompanyID, &b.Scope.Department, &b.Scope.FiscalYear, &b.Scope.FiscalQuarter,
		&b.AllocatedAmount, &b.SpentAmount, &b.PendingAmount, &b.AlertThreshold, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Budget{}, ErrNotFound
		}
		return Budget{}, err
	}
	b.CreatedAt = createdAt.UTC()
	b.UpdatedAt = updatedAt.UTC()
	return b, nil
}
