package answer

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const answerColumns = `id, participant_id, question_id, round, answer, submitted_at`

// GetAnswer fetches a participant's answer for one question. A missing row is
// not an error; the caller receives nil.
func (r *Repository) GetAnswer(ctx context.Context, participantID, questionID uuid.UUID) (*models.Answer, error) {
	query := `SELECT ` + answerColumns + ` FROM answers WHERE participant_id = $1 AND question_id = $2`
	var a models.Answer
	err := r.pool.QueryRow(ctx, query, participantID, questionID).Scan(
		&a.ID,
		&a.ParticipantID,
		&a.QuestionID,
		&a.Round,
		&a.Answer,
		&a.Timestamp,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	return &a, nil
}

const upsertAnswerQuery = `
INSERT INTO answers (id, participant_id, question_id, round, answer, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (participant_id, question_id)
DO UPDATE SET answer = EXCLUDED.answer, submitted_at = EXCLUDED.submitted_at
RETURNING ` + answerColumns

// UpsertAnswer writes a participant's answer, updating in place when one
// already exists for the question so the (participant, question) pair stays
// unique.
func (r *Repository) UpsertAnswer(ctx context.Context, req SubmitAnswerRequest, submittedAt time.Time) (*models.Answer, error) {
	var a models.Answer
	err := r.pool.QueryRow(ctx, upsertAnswerQuery,
		uuid.New(),
		req.ParticipantID,
		req.QuestionID,
		req.Round,
		req.Answer,
		submittedAt,
	).Scan(
		&a.ID,
		&a.ParticipantID,
		&a.QuestionID,
		&a.Round,
		&a.Answer,
		&a.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert answer: %w", err)
	}
	return &a, nil
}

const listAnswersByQuestionQuery = `
SELECT ` + answerColumns + ` FROM answers WHERE question_id = $1`

// ListAnswersByQuestion returns every answer submitted for a question. The
// simulator uses this to grade a round.
func (r *Repository) ListAnswersByQuestion(ctx context.Context, questionID uuid.UUID) ([]models.Answer, error) {
	rows, err := r.pool.Query(ctx, listAnswersByQuestionQuery, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers by question: %w", err)
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(
			&a.ID,
			&a.ParticipantID,
			&a.QuestionID,
			&a.Round,
			&a.Answer,
			&a.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate answers: %w", err)
	}
	return answers, nil
}
