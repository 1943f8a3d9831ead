package participant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/knockouthq/knockout/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ParticipantRepository defines what the participant app layer needs from
// storage.
type ParticipantRepository interface {
	GetParticipant(ctx context.Context, contestID, userID uuid.UUID) (*models.Participant, error)
	GetParticipantByID(ctx context.Context, id uuid.UUID) (*models.Participant, error)
	CreateParticipant(ctx context.Context, id, contestID, userID uuid.UUID) (*models.Participant, error)
	ListActiveParticipants(ctx context.Context, contestID uuid.UUID) ([]models.Participant, error)
	EliminateParticipant(ctx context.Context, id uuid.UUID, round int) (*models.Participant, error)
}

// App handles participant business logic.
type App struct {
	repo ParticipantRepository
}

func NewApp(repo ParticipantRepository) *App {
	return &App{repo: repo}
}

// GetParticipant fetches the participant for a (contest, user) pair, nil when
// the user never joined.
func (a *App) GetParticipant(ctx context.Context, contestID, userID uuid.UUID) (*models.Participant, error) {
	return a.repo.GetParticipant(ctx, contestID, userID)
}

// GetParticipantByID fetches a participant by primary key.
func (a *App) GetParticipantByID(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	return a.repo.GetParticipantByID(ctx, id)
}

// GetOrCreateParticipant joins a user to a contest idempotently. Two
// concurrent callers must converge on one row: the insert tolerates the
// duplicate-key race by returning nothing, in which case we re-fetch the row
// the other writer created.
func (a *App) GetOrCreateParticipant(ctx context.Context, contestID, userID uuid.UUID) (*models.Participant, error) {
	existing, err := a.repo.GetParticipant(ctx, contestID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up participant: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	created, err := a.repo.CreateParticipant(ctx, uuid.New(), contestID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}
	if created != nil {
		log.Debug().
			Str("participant_id", created.ID.String()).
			Str("contest_id", contestID.String()).
			Msg("participant created")
		return created, nil
	}

	// Lost the insert race; the row exists now.
	existing, err = a.repo.GetParticipant(ctx, contestID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-fetch participant after conflict: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("participant missing after duplicate insert for contest %s", contestID)
	}
	return existing, nil
}

// ListActiveParticipants returns participants still alive in the contest.
func (a *App) ListActiveParticipants(ctx context.Context, contestID uuid.UUID) ([]models.Participant, error) {
	return a.repo.ListActiveParticipants(ctx, contestID)
}

// EliminateParticipant knocks a participant out in the given round.
func (a *App) EliminateParticipant(ctx context.Context, id uuid.UUID, round int) (*models.Participant, error) {
	return a.repo.EliminateParticipant(ctx, id, round)
}
