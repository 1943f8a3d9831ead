package contest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/knockouthq/knockout/go/internal/models"
)

// ContestRepository defines what the contest app layer needs from storage.
type ContestRepository interface {
	GetContest(ctx context.Context, id uuid.UUID) (*models.Contest, error)
	ListOpenContests(ctx context.Context) ([]models.Contest, error)
	UpdateContestState(ctx context.Context, id uuid.UUID, state models.ContestState, currentRound *int) (*models.Contest, error)
	CreateContest(ctx context.Context, req CreateContestRequest) (*models.Contest, error)
}

// CreateContestRequest carries the fields needed to create a contest.
type CreateContestRequest struct {
	ID        uuid.UUID
	Name      string
	StartTime time.Time
	Price     float64
}

// App handles contest reads for the client and lifecycle writes for the
// simulator.
type App struct {
	repo ContestRepository
}

func NewApp(repo ContestRepository) *App {
	return &App{repo: repo}
}

// GetContest fetches a contest by id. Returns nil when no such contest exists.
func (a *App) GetContest(ctx context.Context, id uuid.UUID) (*models.Contest, error) {
	return a.repo.GetContest(ctx, id)
}

// ListOpenContests returns contests a player could still join or is playing.
func (a *App) ListOpenContests(ctx context.Context) ([]models.Contest, error) {
	return a.repo.ListOpenContests(ctx)
}

// UpdateContestState moves the contest through its lifecycle.
func (a *App) UpdateContestState(ctx context.Context, id uuid.UUID, state models.ContestState, currentRound *int) (*models.Contest, error) {
	return a.repo.UpdateContestState(ctx, id, state, currentRound)
}

// CreateContest inserts a new contest in the lobby-open state.
func (a *App) CreateContest(ctx context.Context, req CreateContestRequest) (*models.Contest, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	return a.repo.CreateContest(ctx, req)
}
