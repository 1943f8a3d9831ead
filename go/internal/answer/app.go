package answer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/knockouthq/knockout/go/internal/apperrors"
	"github.com/knockouthq/knockout/go/internal/models"
)

// AnswerRepository defines what the answer app layer needs from storage.
type AnswerRepository interface {
	GetAnswer(ctx context.Context, participantID, questionID uuid.UUID) (*models.Answer, error)
	UpsertAnswer(ctx context.Context, req SubmitAnswerRequest, submittedAt time.Time) (*models.Answer, error)
	ListAnswersByQuestion(ctx context.Context, questionID uuid.UUID) ([]models.Answer, error)
}

// SubmitAnswerRequest carries a submit-or-update write for one question.
type SubmitAnswerRequest struct {
	ParticipantID uuid.UUID
	QuestionID    uuid.UUID
	Round         int
	Answer        string
}

// App handles answer reads and the submit-or-update write path.
type App struct {
	repo  AnswerRepository
	clock clockwork.Clock
}

func NewApp(repo AnswerRepository, clock clockwork.Clock) *App {
	return &App{repo: repo, clock: clock}
}

// GetAnswer fetches the participant's answer for a question, nil when none
// was submitted.
func (a *App) GetAnswer(ctx context.Context, participantID, questionID uuid.UUID) (*models.Answer, error) {
	return a.repo.GetAnswer(ctx, participantID, questionID)
}

// SubmitAnswer validates and writes an answer, updating in place when the
// participant already answered this question.
func (a *App) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*models.Answer, error) {
	if req.ParticipantID == uuid.Nil || req.QuestionID == uuid.Nil {
		return nil, apperrors.Validation("answer requires participant and question ids")
	}
	if req.Answer == "" {
		return nil, apperrors.Validation("answer option must not be empty")
	}
	return a.repo.UpsertAnswer(ctx, req, a.clock.Now())
}

// ListAnswersByQuestion returns every answer for a question.
func (a *App) ListAnswersByQuestion(ctx context.Context, questionID uuid.UUID) ([]models.Answer, error) {
	return a.repo.ListAnswersByQuestion(ctx, questionID)
}
