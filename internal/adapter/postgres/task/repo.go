// Package task implements the task gateway backed by PostgreSQL. Every query
// is scoped by user_id; row-level security on the server is the second line
// of defense, not the only one.
package task

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dailysync/keeper/internal/adapter/postgres"
	"github.com/dailysync/keeper/internal/domain"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const tasksTable = "tasks"

var taskColumns = []string{"id", "user_id", "title", "priority", "completed", "created_at", "updated_at"}

// Repo provides task persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new task repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// List returns all tasks owned by userID, newest first.
func (r *Repo) List(ctx context.Context, userID uuid.UUID) ([]domain.Task, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.Select(taskColumns...).
		From(tasksTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, postgres.MapError(err, "task")
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, "task")
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, postgres.MapError(err, "task")
		}
		out = append(out, t)
	}
	return out, postgres.MapError(rows.Err(), "task")
}

// Insert persists a new task and returns the row as stored, including
// server-assigned timestamps.
func (r *Repo) Insert(ctx context.Context, t domain.Task) (domain.Task, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.Insert(tasksTable).
		Columns("id", "user_id", "title", "priority", "completed").
		Values(t.ID, t.UserID, t.Title, t.Priority, t.Completed).
		Suffix("RETURNING " + postgres.Columns(taskColumns)).
		ToSql()
	if err != nil {
		return domain.Task{}, postgres.MapError(err, "task")
	}

	row := q.QueryRow(ctx, sql, args...)
	stored, err := scanTask(row)
	if err != nil {
		return domain.Task{}, postgres.MapError(err, "task")
	}
	return stored, nil
}

// Patch holds the mutable task fields. Nil fields are left untouched.
type Patch struct {
	Title     *string
	Priority  *domain.Priority
	Completed *bool
}

// Update applies a partial patch scoped by id AND user_id, guarding against
// cross-tenant writes.
func (r *Repo) Update(ctx context.Context, userID, id uuid.UUID, p Patch) (domain.Task, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	b := qb.Update(tasksTable).Set("updated_at", sq.Expr("now()"))
	if p.Title != nil {
		b = b.Set("title", *p.Title)
	}
	if p.Priority != nil {
		b = b.Set("priority", *p.Priority)
	}
	if p.Completed != nil {
		b = b.Set("completed", *p.Completed)
	}

	sql, args, err := b.
		Where(sq.Eq{"id": id, "user_id": userID}).
		Suffix("RETURNING " + postgres.Columns(taskColumns)).
		ToSql()
	if err != nil {
		return domain.Task{}, postgres.MapError(err, "task")
	}

	row := q.QueryRow(ctx, sql, args...)
	stored, err := scanTask(row)
	if err != nil {
		return domain.Task{}, postgres.MapError(err, "task")
	}
	return stored, nil
}

// Delete removes a task scoped by id AND user_id. Deleting an absent row
// yields ErrNotFound.
func (r *Repo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.Delete(tasksTable).
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return postgres.MapError(err, "task")
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "task")
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(domain.ErrNotFound, "task")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var userID uuid.UUID
	err := row.Scan(&t.ID, &userID, &t.Title, &t.Priority, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	t.UserID = &userID
	return t, nil
}
