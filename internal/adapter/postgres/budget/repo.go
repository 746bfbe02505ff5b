// Package budget implements the monthly budget gateway backed by PostgreSQL.
// A budget row is unique per (user_id, year, month) and writes use upsert
// semantics against that key.
package budget

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dailysync/keeper/internal/adapter/postgres"
	"github.com/dailysync/keeper/internal/domain"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const budgetsTable = "budgets"

var budgetColumns = []string{"id", "user_id", "year", "month", "amount", "updated_at"}

// Repo provides budget persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new budget repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Get returns the budget for (userID, year, month), or ErrNotFound.
func (r *Repo) Get(ctx context.Context, userID uuid.UUID, year, month int) (domain.Budget, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.Select(budgetColumns...).
		From(budgetsTable).
		Where(sq.Eq{"user_id": userID, "year": year, "month": month}).
		ToSql()
	if err != nil {
		return domain.Budget{}, postgres.MapError(err, "budget")
	}

	var b domain.Budget
	row := q.QueryRow(ctx, sql, args...)
	if err := row.Scan(&b.ID, &b.UserID, &b.Year, &b.Month, &b.Amount, &b.UpdatedAt); err != nil {
		return domain.Budget{}, postgres.MapError(err, "budget")
	}
	return b, nil
}

// Upsert creates or replaces the budget amount for (userID, year, month).
// Calling it twice with the same key leaves exactly one row.
func (r *Repo) Upsert(ctx context.Context, userID uuid.UUID, year, month int, amount float64) (domain.Budget, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.Insert(budgetsTable).
		Columns("id", "user_id", "year", "month", "amount").
		Values(uuid.New(), userID, year, month, amount).
		Suffix(`ON CONFLICT (user_id, year, month)
			DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()
			RETURNING ` + postgres.Columns(budgetColumns)).
		ToSql()
	if err != nil {
		return domain.Budget{}, postgres.MapError(err, "budget")
	}

	var b domain.Budget
	row := q.QueryRow(ctx, sql, args...)
	if err := row.Scan(&b.ID, &b.UserID, &b.Year, &b.Month, &b.Amount, &b.UpdatedAt); err != nil {
		return domain.Budget{}, postgres.MapError(err, "budget")
	}
	return b, nil
}
