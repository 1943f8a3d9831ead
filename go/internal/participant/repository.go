package participant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/knockouthq/knockout/go/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const participantColumns = `id, contest_id, user_id, elimination_round, created_at, updated_at`

// GetParticipant fetches the participant row for a (contest, user) pair.
// A missing row is not an error; the caller receives nil.
func (r *Repository) GetParticipant(ctx context.Context, contestID, userID uuid.UUID) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE contest_id = $1 AND user_id = $2`
	var p models.Participant
	err := r.pool.QueryRow(ctx, query, contestID, userID).Scan(
		&p.ID,
		&p.ContestID,
		&p.UserID,
		&p.EliminationRound,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return &p, nil
}

// GetParticipantByID fetches a participant by primary key.
func (r *Repository) GetParticipantByID(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`
	var p models.Participant
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.ContestID,
		&p.UserID,
		&p.EliminationRound,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant by id: %w", err)
	}
	return &p, nil
}

const createParticipantQuery = `
INSERT INTO participants (id, contest_id, user_id)
VALUES ($1, $2, $3)
ON CONFLICT (contest_id, user_id) DO NOTHING
RETURNING ` + participantColumns

// CreateParticipant inserts a participant row. The (contest_id, user_id)
// uniqueness constraint absorbs concurrent duplicate inserts: when another
// writer won the race no row comes back and the caller re-fetches.
func (r *Repository) CreateParticipant(ctx context.Context, id, contestID, userID uuid.UUID) (*models.Participant, error) {
	var p models.Participant
	err := r.pool.QueryRow(ctx, createParticipantQuery, id, contestID, userID).Scan(
		&p.ID,
		&p.ContestID,
		&p.UserID,
		&p.EliminationRound,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}
	return &p, nil
}

const listActiveParticipantsQuery = `
SELECT ` + participantColumns + `
FROM participants
WHERE contest_id = $1 AND elimination_round IS NULL`

// ListActiveParticipants returns participants still alive in the contest.
func (r *Repository) ListActiveParticipants(ctx context.Context, contestID uuid.UUID) ([]models.Participant, error) {
	rows, err := r.pool.Query(ctx, listActiveParticipantsQuery, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(
			&p.ID,
			&p.ContestID,
			&p.UserID,
			&p.EliminationRound,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}

const eliminateParticipantQuery = `
UPDATE participants
SET elimination_round = $2, updated_at = now()
WHERE id = $1 AND elimination_round IS NULL
RETURNING ` + participantColumns

// EliminateParticipant records the round a participant was knocked out in.
// The IS NULL guard keeps elimination monotonic: an already eliminated
// participant is never re-stamped with a later round.
func (r *Repository) EliminateParticipant(ctx context.Context, id uuid.UUID, round int) (*models.Participant, error) {
	var p models.Participant
	err := r.pool.QueryRow(ctx, eliminateParticipantQuery, id, round).Scan(
		&p.ID,
		&p.ContestID,
		&p.UserID,
		&p.EliminationRound,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already eliminated; return the current row untouched.
		return r.GetParticipantByID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to eliminate participant: %w", err)
	}
	return &p, nil
}
