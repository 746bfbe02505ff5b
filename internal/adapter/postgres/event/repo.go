// Package event implements the calendar event gateway backed by PostgreSQL.
package event

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dailysync/keeper/internal/adapter/postgres"
	"github.com/dailysync/keeper/internal/domain"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const eventsTable = "calendar_events"

var eventColumns = []string{
	"id", "user_id", "title", "date", "time", "duration",
	"color", "category", "description", "created_at", "updated_at",
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Category  string
	StartDate string
	EndDate   string
}

// Repo provides calendar event persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new calendar event repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// List returns the user's events matching the filter, ordered by (date, time).
func (r *Repo) List(ctx context.Context, userID uuid.UUID, f Filter) ([]domain.CalendarEvent, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	b := qb.Select(eventColumns...).
		From(eventsTable).
		Where(sq.Eq{"user_id": userID})
	if f.Category != "" {
		b = b.Where(sq.Eq{"category": f.Category})
	}
	if f.StartDate != "" {
		b = b.Where(sq.GtOrEq{"date": f.StartDate})
	}
	if f.EndDate != "" {
		b = b.Where(sq.LtOrEq{"date": f.EndDate})
	}

	sql, args, err := b.OrderBy("date ASC", "time ASC").ToSql()
	if err != nil {
		return nil, postgres.MapError(err, "calendar_event")
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, "calendar_event")
	}
	defer rows.Close()

	var out []domain.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, postgres.MapError(err, "calendar_event")
		}
		out = append(out, e)
	}
	return out, postgres.MapError(rows.Err(), "calendar_event")
}

// Insert persists a new event (keeping the caller's optimistic id) and
// returns the stored row with server-assigned timestamps.
func (r *Repo) Insert(ctx context.Context, e domain.CalendarEvent) (domain.CalendarEvent, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.Insert(eventsTable).
		Columns("id", "user_id", "title", "date", "time", "duration", "color", "category", "description").
		Values(e.ID, e.UserID, e.Title, e.Date, e.Time, e.Duration, e.Color, e.Category, e.Description).
		Suffix("RETURNING " + postgres.Columns(eventColumns)).
		ToSql()
	if err != nil {
		return domain.CalendarEvent{}, postgres.MapError(err, "calendar_event")
	}

	row := q.QueryRow(ctx, sql, args...)
	stored, err := scanEvent(row)
	if err != nil {
		return domain.CalendarEvent{}, postgres.MapError(err, "calendar_event")
	}
	return stored, nil
}

// Update applies a partial patch scoped by id AND user_id.
func (r *Repo) Update(ctx context.Context, userID, id uuid.UUID, p domain.EventPatch) (domain.CalendarEvent, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	b := qb.Update(eventsTable).Set("updated_at", sq.Expr("now()"))
	if p.Title != nil {
		b = b.Set("title", *p.Title)
	}
	if p.Date != nil {
		b = b.Set("date", *p.Date)
	}
	if p.Time != nil {
		b = b.Set("time", *p.Time)
	}
	if p.Duration != nil {
		b = b.Set("duration", *p.Duration)
	}
	if p.Color != nil {
		b = b.Set("color", *p.Color)
	}
	if p.Category != nil {
		b = b.Set("category", *p.Category)
	}
	if p.Description != nil {
		b = b.Set("description", *p.Description)
	}

	sql, args, err := b.
		Where(sq.Eq{"id": id, "user_id": userID}).
		Suffix("RETURNING " + postgres.Columns(eventColumns)).
		ToSql()
	if err != nil {
		return domain.CalendarEvent{}, postgres.MapError(err, "calendar_event")
	}

	row := q.QueryRow(ctx, sql, args...)
	stored, err := scanEvent(row)
	if err != nil {
		return domain.CalendarEvent{}, postgres.MapError(err, "calendar_event")
	}
	return stored, nil
}

// Delete removes an event scoped by id AND user_id.
func (r *Repo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.Delete(eventsTable).
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return postgres.MapError(err, "calendar_event")
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "calendar_event")
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(domain.ErrNotFound, "calendar_event")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (domain.CalendarEvent, error) {
	var e domain.CalendarEvent
	var userID uuid.UUID
	var category, description *string
	err := row.Scan(&e.ID, &userID, &e.Title, &e.Date, &e.Time, &e.Duration,
		&e.Color, &category, &description, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	e.UserID = &userID
	if category != nil {
		e.Category = *category
	}
	if description != nil {
		e.Description = *description
	}
	return e, nil
}
