package question

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

const questionColumns = `id, contest_id, round, question, options, correct_option, created_at, updated_at`

// GetQuestionByRound fetches the single question for a (contest, round) pair.
// A missing row is not an error; the caller receives nil.
func (r *Repository) GetQuestionByRound(ctx context.Context, contestID uuid.UUID, round int) (*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE contest_id = $1 AND round = $2`
	var q models.Question
	err := r.pool.QueryRow(ctx, query, contestID, round).Scan(
		&q.ID,
		&q.ContestID,
		&q.Round,
		&q.Question,
		&q.Options,
		&q.CorrectOption,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question by round: %w", err)
	}
	return &q, nil
}

const createQuestionQuery = `
INSERT INTO questions (id, contest_id, round, question, options)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + questionColumns

// CreateQuestion inserts the question for a round. The (contest_id, round)
// uniqueness constraint enforces one question per round.
func (r *Repository) CreateQuestion(ctx context.Context, req CreateQuestionRequest) (*models.Question, error) {
	var q models.Question
	err := r.pool.QueryRow(ctx, createQuestionQuery,
		req.ID,
		req.ContestID,
		req.Round,
		req.Question,
		req.Options,
	).Scan(
		&q.ID,
		&q.ContestID,
		&q.Round,
		&q.Question,
		&q.Options,
		&q.CorrectOption,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return &q, nil
}

const gradeQuestionQuery = `
UPDATE questions
SET correct_option = $2, updated_at = now()
WHERE id = $1 AND correct_option IS NULL
RETURNING ` + questionColumns

// GradeQuestion publishes the correct option. The IS NULL guard makes grading
// a one-shot transition per round.
func (r *Repository) GradeQuestion(ctx context.Context, id uuid.UUID, correctOption string) (*models.Question, error) {
	var q models.Question
	err := r.pool.QueryRow(ctx, gradeQuestionQuery, id, correctOption).Scan(
		&q.ID,
		&q.ContestID,
		&q.Round,
		&q.Question,
		&q.Options,
		&q.CorrectOption,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("question %s already graded or not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to grade question: %w", err)
	}
	return &q, nil
}
