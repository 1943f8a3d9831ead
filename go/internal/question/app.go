package question

import (
	"context"

	"github.com/google/uuid"
	"github.com/knockouthq/knockout/go/internal/models"
)

// QuestionRepository defines what the question app layer needs from storage.
type QuestionRepository interface {
	GetQuestionByRound(ctx context.Context, contestID uuid.UUID, round int) (*models.Question, error)
	CreateQuestion(ctx context.Context, req CreateQuestionRequest) (*models.Question, error)
	GradeQuestion(ctx context.Context, id uuid.UUID, correctOption string) (*models.Question, error)
}

// CreateQuestionRequest carries the fields needed to create a round question.
type CreateQuestionRequest struct {
	ID        uuid.UUID
	ContestID uuid.UUID
	Round     int
	Question  string
	Options   map[string]string
}

// App handles question reads for the client and writes for the simulator.
type App struct {
	repo QuestionRepository
}

func NewApp(repo QuestionRepository) *App {
	return &App{repo: repo}
}

// GetQuestionByRound fetches the question for a round, nil when the server
// has not published it yet.
func (a *App) GetQuestionByRound(ctx context.Context, contestID uuid.UUID, round int) (*models.Question, error) {
	return a.repo.GetQuestionByRound(ctx, contestID, round)
}

// CreateQuestion inserts the question for a round.
func (a *App) CreateQuestion(ctx context.Context, req CreateQuestionRequest) (*models.Question, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	return a.repo.CreateQuestion(ctx, req)
}

// GradeQuestion publishes the correct option for a round.
func (a *App) GradeQuestion(ctx context.Context, id uuid.UUID, correctOption string) (*models.Question, error) {
	return a.repo.GradeQuestion(ctx, id, correctOption)
}
