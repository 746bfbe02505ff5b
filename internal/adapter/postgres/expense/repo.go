// Package expense implements the expense gateway backed by PostgreSQL.
package expense

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dailysync/keeper/internal/adapter/postgres"
	"github.com/dailysync/keeper/internal/domain"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const expensesTable = "expenses"

var expenseColumns = []string{
	"id", "user_id", "amount", "category", "description", "icon", "date", "created_at", "updated_at",
}

// Repo provides expense persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new expense repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// List returns all expenses owned by userID ordered by (date, description),
// the stable order both partitions rely on.
func (r *Repo) List(ctx context.Context, userID uuid.UUID) ([]domain.Expense, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.Select(expenseColumns...).
		From(expensesTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("date ASC", "description ASC").
		ToSql()
	if err != nil {
		return nil, postgres.MapError(err, "expense")
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, "expense")
	}
	defer rows.Close()

	var out []domain.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, postgres.MapError(err, "expense")
		}
		out = append(out, e)
	}
	return out, postgres.MapError(rows.Err(), "expense")
}

// Insert persists a new expense and returns the stored row.
func (r *Repo) Insert(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.Insert(expensesTable).
		Columns("id", "user_id", "amount", "category", "description", "icon", "date").
		Values(e.ID, e.UserID, e.Amount, e.Category, e.Description, e.Icon, e.Date).
		Suffix("RETURNING " + postgres.Columns(expenseColumns)).
		ToSql()
	if err != nil {
		return domain.Expense{}, postgres.MapError(err, "expense")
	}

	row := q.QueryRow(ctx, sql, args...)
	stored, err := scanExpense(row)
	if err != nil {
		return domain.Expense{}, postgres.MapError(err, "expense")
	}
	return stored, nil
}

// Update applies a partial patch scoped by id AND user_id.
func (r *Repo) Update(ctx context.Context, userID, id uuid.UUID, p domain.ExpensePatch) (domain.Expense, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	b := qb.Update(expensesTable).Set("updated_at", sq.Expr("now()"))
	if p.Amount != nil {
		b = b.Set("amount", *p.Amount)
	}
	if p.Category != nil {
		b = b.Set("category", *p.Category)
	}
	if p.Description != nil {
		b = b.Set("description", *p.Description)
	}
	if p.Icon != nil {
		b = b.Set("icon", *p.Icon)
	}
	if p.Date != nil {
		b = b.Set("date", *p.Date)
	}

	sql, args, err := b.
		Where(sq.Eq{"id": id, "user_id": userID}).
		Suffix("RETURNING " + postgres.Columns(expenseColumns)).
		ToSql()
	if err != nil {
		return domain.Expense{}, postgres.MapError(err, "expense")
	}

	row := q.QueryRow(ctx, sql, args...)
	stored, err := scanExpense(row)
	if err != nil {
		return domain.Expense{}, postgres.MapError(err, "expense")
	}
	return stored, nil
}

// Delete removes an expense scoped by id AND user_id.
func (r *Repo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.Delete(expensesTable).
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return postgres.MapError(err, "expense")
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "expense")
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(domain.ErrNotFound, "expense")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (domain.Expense, error) {
	var e domain.Expense
	var userID uuid.UUID
	var description, icon *string
	err := row.Scan(&e.ID, &userID, &e.Amount, &e.Category, &description, &icon,
		&e.Date, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return domain.Expense{}, err
	}
	e.UserID = &userID
	if description != nil {
		e.Description = *description
	}
	if icon != nil {
		e.Icon = *icon
	}
	return e, nil
}
