// Package message implements assistant conversation persistence backed by
// PostgreSQL.
package message

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dailysync/keeper/internal/adapter/postgres"
	"github.com/dailysync/keeper/internal/domain"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const messagesTable = "assistant_messages"

var messageColumns = []string{"id", "user_id", "role", "message", "created_at"}

// Repo provides assistant message persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new assistant message repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Insert persists a new conversation message.
func (r *Repo) Insert(ctx context.Context, m domain.AssistantMessage) (domain.AssistantMessage, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	id := m.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	sql, args, err := qb.Insert(messagesTable).
		Columns("id", "user_id", "role", "message").
		Values(id, m.UserID, m.Role, m.Message).
		Suffix("RETURNING " + postgres.Columns(messageColumns)).
		ToSql()
	if err != nil {
		return domain.AssistantMessage{}, postgres.MapError(err, "assistant_message")
	}

	row := q.QueryRow(ctx, sql, args...)
	var stored domain.AssistantMessage
	if err := row.Scan(&stored.ID, &stored.UserID, &stored.Role, &stored.Message, &stored.CreatedAt); err != nil {
		return domain.AssistantMessage{}, postgres.MapError(err, "assistant_message")
	}
	return stored, nil
}

// ListRecent returns the user's last limit messages in chronological order.
func (r *Repo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]domain.AssistantMessage, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.Select(messageColumns...).
		From(messagesTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, postgres.MapError(err, "assistant_message")
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, "assistant_message")
	}
	defer rows.Close()

	var out []domain.AssistantMessage
	for rows.Next() {
		var m domain.AssistantMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Message, &m.CreatedAt); err != nil {
			return nil, postgres.MapError(err, "assistant_message")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err, "assistant_message")
	}

	// Reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
