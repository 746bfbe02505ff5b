// Package profile implements the user profile gateway backed by PostgreSQL.
// One row per user_id; writes upsert against it.
package profile

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dailysync/keeper/internal/adapter/postgres"
	"github.com/dailysync/keeper/internal/domain"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const profilesTable = "profiles"

var profileColumns = []string{"user_id", "username", "avatar_url", "language", "theme"}

// Repo provides profile persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new profile repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Get returns the profile for userID, or ErrNotFound when none exists yet.
func (r *Repo) Get(ctx context.Context, userID uuid.UUID) (domain.Profile, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.Select(profileColumns...).
		From(profilesTable).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return domain.Profile{}, postgres.MapError(err, "profile")
	}

	stored, err := scanProfile(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return domain.Profile{}, postgres.MapError(err, "profile")
	}
	return stored, nil
}

// Upsert creates or replaces the profile row for p.UserID.
func (r *Repo) Upsert(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.Insert(profilesTable).
		Columns(profileColumns...).
		Values(p.UserID, p.Username, p.AvatarURL, p.Language, p.Theme).
		Suffix(`ON CONFLICT (user_id)
			DO UPDATE SET username = EXCLUDED.username, avatar_url = EXCLUDED.avatar_url,
				language = EXCLUDED.language, theme = EXCLUDED.theme
			RETURNING ` + postgres.Columns(profileColumns)).
		ToSql()
	if err != nil {
		return domain.Profile{}, postgres.MapError(err, "profile")
	}

	stored, err := scanProfile(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return domain.Profile{}, postgres.MapError(err, "profile")
	}
	return stored, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (domain.Profile, error) {
	var p domain.Profile
	var username, avatarURL, language, theme *string
	err := row.Scan(&p.UserID, &username, &avatarURL, &language, &theme)
	if err != nil {
		return domain.Profile{}, err
	}
	if username != nil {
		p.Username = *username
	}
	if avatarURL != nil {
		p.AvatarURL = *avatarURL
	}
	if language != nil {
		p.Language = *language
	}
	if theme != nil {
		p.Theme = *theme
	}
	return p, nil
}
