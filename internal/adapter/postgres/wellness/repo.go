// Package wellness implements the wellness gateway backed by PostgreSQL.
// Rows are unique per (user_id, date); writes upsert against that key.
package wellness

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dailysync/keeper/internal/adapter/postgres"
	"github.com/dailysync/keeper/internal/domain"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const wellnessTable = "wellness_data"

var wellnessColumns = []string{"id", "user_id", "date", "mood", "energy", "steps", "calories", "notes"}

// Repo provides wellness persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new wellness repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ListRange returns rows for userID with start <= date <= end, ascending.
func (r *Repo) ListRange(ctx context.Context, userID uuid.UUID, start, end string) ([]domain.WellnessRow, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.Select(wellnessColumns...).
		From(wellnessTable).
		Where(sq.Eq{"user_id": userID}).
		Where(sq.GtOrEq{"date": start}).
		Where(sq.LtOrEq{"date": end}).
		OrderBy("date ASC").
		ToSql()
	if err != nil {
		return nil, postgres.MapError(err, "wellness")
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, "wellness")
	}
	defer rows.Close()

	var out []domain.WellnessRow
	for rows.Next() {
		w, err := scanWellness(rows)
		if err != nil {
			return nil, postgres.MapError(err, "wellness")
		}
		out = append(out, w)
	}
	return out, postgres.MapError(rows.Err(), "wellness")
}

// Upsert creates or replaces the row for (userID, date).
func (r *Repo) Upsert(ctx context.Context, row domain.WellnessRow) (domain.WellnessRow, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	id := row.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	sql, args, err := qb.Insert(wellnessTable).
		Columns("id", "user_id", "date", "mood", "energy", "steps", "calories", "notes").
		Values(id, row.UserID, row.Date, row.Mood, row.Energy, row.Steps, row.Calories, row.Notes).
		Suffix(`ON CONFLICT (user_id, date)
			DO UPDATE SET mood = EXCLUDED.mood, energy = EXCLUDED.energy,
				steps = EXCLUDED.steps, calories = EXCLUDED.calories, notes = EXCLUDED.notes
			RETURNING ` + postgres.Columns(wellnessColumns)).
		ToSql()
	if err != nil {
		return domain.WellnessRow{}, postgres.MapError(err, "wellness")
	}

	stored, err := scanWellness(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return domain.WellnessRow{}, postgres.MapError(err, "wellness")
	}
	return stored, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWellness(row rowScanner) (domain.WellnessRow, error) {
	var w domain.WellnessRow
	var userID uuid.UUID
	var notes *string
	err := row.Scan(&w.ID, &userID, &w.Date, &w.Mood, &w.Energy, &w.Steps, &w.Calories, &notes)
	if err != nil {
		return domain.WellnessRow{}, err
	}
	w.UserID = &userID
	if notes != nil {
		w.Notes = *notes
	}
	return w, nil
}
