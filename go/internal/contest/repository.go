package contest

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

const getContestQuery = `
SELECT id, name, state, current_round, start_time, price, created_at, updated_at
FROM contests
WHERE id = $1`

// GetContest fetches a contest by id. A missing row is not an error; the
// caller receives nil.
func (r *Repository) GetContest(ctx context.Context, id uuid.UUID) (*models.Contest, error) {
	var c models.Contest
	err := r.pool.QueryRow(ctx, getContestQuery, id).Scan(
		&c.ID,
		&c.Name,
		&c.State,
		&c.CurrentRound,
		&c.StartTime,
		&c.Price,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contest: %w", err)
	}
	return &c, nil
}

const listOpenContestsQuery = `
SELECT id, name, state, current_round, start_time, price, created_at, updated_at
FROM contests
WHERE state != 'FINISHED'
ORDER BY start_time`

// ListOpenContests returns contests that have not finished yet.
func (r *Repository) ListOpenContests(ctx context.Context) ([]models.Contest, error) {
	rows, err := r.pool.Query(ctx, listOpenContestsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list open contests: %w", err)
	}
	defer rows.Close()

	var contests []models.Contest
	for rows.Next() {
		var c models.Contest
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.State,
			&c.CurrentRound,
			&c.StartTime,
			&c.Price,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan contest: %w", err)
		}
		contests = append(contests, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contests: %w", err)
	}
	return contests, nil
}

const updateContestStateQuery = `
UPDATE contests
SET state = $2, current_round = $3, updated_at = now()
WHERE id = $1
RETURNING id, name, state, current_round, start_time, price, created_at, updated_at`

// UpdateContestState advances the contest lifecycle. Only the simulator and
// admin tooling write contests; the player client never calls this.
func (r *Repository) UpdateContestState(ctx context.Context, id uuid.UUID, state models.ContestState, currentRound *int) (*models.Contest, error) {
	var c models.Contest
	err := r.pool.QueryRow(ctx, updateContestStateQuery, id, state, currentRound).Scan(
		&c.ID,
		&c.Name,
		&c.State,
		&c.CurrentRound,
		&c.StartTime,
		&c.Price,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update contest state: %w", err)
	}
	return &c, nil
}

const createContestQuery = `
INSERT INTO contests (id, name, state, current_round, start_time, price)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, name, state, current_round, start_time, price, created_at, updated_at`

// CreateContest inserts a new contest row.
func (r *Repository) CreateContest(ctx context.Context, req CreateContestRequest) (*models.Contest, error) {
	var c models.Contest
	err := r.pool.QueryRow(ctx, createContestQuery,
		req.ID,
		req.Name,
		models.ContestStateLobbyOpen,
		nil,
		req.StartTime,
		req.Price,
	).Scan(
		&c.ID,
		&c.Name,
		&c.State,
		&c.CurrentRound,
		&c.StartTime,
		&c.Price,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create contest: %w", err)
	}
	return &c, nil
}
