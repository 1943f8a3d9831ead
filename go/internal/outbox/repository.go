package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/knockouthq/knockout/go/internal/apperrors"
	"github.com/knockouthq/knockout/go/internal/realtime"
	"github.com/sqlc-dev/pqtype"
)

// NotifyChannel carries freshly inserted row ids from producers to the
// listener's fast path.
const NotifyChannel = "contest_outbox_events"

// Repository persists outbox rows on database/sql. The listener shares the
// connection with lib/pq's LISTEN channel, so this layer stays off pgx.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends one outbox row inside tx so the entity change and its event
// commit or roll back together. The pg_notify rides the same transaction and
// fires on commit.
func (r *Repository) Insert(ctx context.Context, tx *sql.Tx, kind realtime.EntityKind, key string, payload []byte) (uuid.UUID, error) {
	id := uuid.New()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO contest_outbox (id, kind, key, payload, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		id, string(kind), key, pqtype.NullRawMessage{RawMessage: payload, Valid: len(payload) > 0},
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert outbox event: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, id.String()); err != nil {
		return uuid.Nil, fmt.Errorf("failed to notify outbox listener: %w", err)
	}
	return id, nil
}

// FetchByID returns one unsent row, or an error when the row is missing or
// already relayed.
func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, key, payload, created_at
		FROM contest_outbox
		WHERE id = $1 AND sent_at IS NULL`,
		id,
	)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("outbox event %s not found or already sent", id)
		}
		return nil, fmt.Errorf("failed to fetch outbox event: %w", err)
	}
	return event, nil
}

// FetchUnsent returns up to limit unsent rows in commit order.
func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, key, payload, created_at
		FROM contest_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read unsent outbox events: %w", err)
	}
	return events, nil
}

// MarkSent stamps the row's sent time. Re-marking already sent rows is a
// no-op, so at-least-once relays stay safe.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contest_outbox SET sent_at = NOW()
		WHERE id = $1 AND sent_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		event   Event
		kind    string
		payload pqtype.NullRawMessage
	)
	if err := row.Scan(&event.ID, &kind, &event.Key, &payload, &event.CreatedAt); err != nil {
		return nil, err
	}
	event.Kind = realtime.EntityKind(kind)
	if payload.Valid {
		event.Payload = payload.RawMessage
	}
	return &event, nil
}
