package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/knockouthq/knockout/go/internal/models"
	"github.com/knockouthq/knockout/go/internal/question"
	"github.com/knockouthq/knockout/go/internal/realtime"
	"github.com/rs/zerolog/log"
)

// RoundQuestion is one scripted round.
type RoundQuestion struct {
	Prompt  string
	Options map[string]string
	Correct string
}

type Config struct {
	LobbyDuration time.Duration // Time in LOBBY_OPEN before round 1
	RoundDuration time.Duration // Answering window per round
	GradingDelay  time.Duration // Pause between grading and the next round
	Questions     []RoundQuestion
}

func DefaultConfig() Config {
	return Config{
		LobbyDuration: 30 * time.Second,
		RoundDuration: 20 * time.Second,
		GradingDelay:  10 * time.Second,
	}
}

// ContestStore is the contest lifecycle surface the simulator drives.
type ContestStore interface {
	UpdateContestState(ctx context.Context, id uuid.UUID, state models.ContestState, currentRound *int) (*models.Contest, error)
}

// QuestionStore publishes and grades round questions.
type QuestionStore interface {
	GetQuestionByRound(ctx context.Context, contestID uuid.UUID, round int) (*models.Question, error)
	CreateQuestion(ctx context.Context, req question.CreateQuestionRequest) (*models.Question, error)
	GradeQuestion(ctx context.Context, id uuid.UUID, correctOption string) (*models.Question, error)
}

// ParticipantStore lists and eliminates contestants.
type ParticipantStore interface {
	ListActiveParticipants(ctx context.Context, contestID uuid.UUID) ([]models.Participant, error)
	EliminateParticipant(ctx context.Context, id uuid.UUID, round int) (*models.Participant, error)
}

// AnswerStore reads the answers submitted for a question.
type AnswerStore interface {
	ListAnswersByQuestion(ctx context.Context, questionID uuid.UUID) ([]models.Answer, error)
}

// Simulator runs one contest end to end: lobby, timed rounds, grading,
// eliminations, finish. It is the only writer of contest, question and
// elimination state; every write is followed by an Emit so subscribed
// clients converge.
type Simulator struct {
	contests     ContestStore
	questions    QuestionStore
	participants ParticipantStore
	answers      AnswerStore
	emitter      Emitter
	clock        clockwork.Clock
	cfg          Config
}

func NewSimulator(contests ContestStore, questions QuestionStore, participants ParticipantStore, answers AnswerStore, emitter Emitter, clock clockwork.Clock, cfg Config) *Simulator {
	return &Simulator{
		contests:     contests,
		questions:    questions,
		participants: participants,
		answers:      answers,
		emitter:      emitter,
		clock:        clock,
		cfg:          cfg,
	}
}

// Run drives the contest until it finishes or ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, contestID uuid.UUID) error {
	log.Info().
		Str("contest_id", contestID.String()).
		Int("rounds", len(s.cfg.Questions)).
		Msg("contest simulation started")

	if err := s.sleep(ctx, s.cfg.LobbyDuration); err != nil {
		return err
	}

	for i, rq := range s.cfg.Questions {
		round := i + 1

		if err := s.openRound(ctx, contestID, round, rq); err != nil {
			return fmt.Errorf("open round %d: %w", round, err)
		}

		if err := s.sleep(ctx, s.cfg.RoundDuration); err != nil {
			return err
		}

		survivors, err := s.closeRound(ctx, contestID, round)
		if err != nil {
			return fmt.Errorf("close round %d: %w", round, err)
		}

		log.Info().
			Str("contest_id", contestID.String()).
			Int("round", round).
			Int("survivors", survivors).
			Msg("round graded")

		if survivors <= 1 {
			break
		}

		if err := s.sleep(ctx, s.cfg.GradingDelay); err != nil {
			return err
		}
	}

	return s.finish(ctx, contestID)
}

// openRound publishes the round question and moves the contest into
// ROUND_IN_PROGRESS. The question lands first so clients that react to the
// contest round advance find it on fetch.
func (s *Simulator) openRound(ctx context.Context, contestID uuid.UUID, round int, rq RoundQuestion) error {
	q, err := s.questions.CreateQuestion(ctx, question.CreateQuestionRequest{
		ContestID: contestID,
		Round:     round,
		Question:  rq.Prompt,
		Options:   rq.Options,
	})
	if err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	if err := s.emitter.Emit(ctx, realtime.KindQuestion, contestID.String(), q); err != nil {
		return fmt.Errorf("emit question: %w", err)
	}

	contest, err := s.contests.UpdateContestState(ctx, contestID, models.ContestStateRoundInProgress, &round)
	if err != nil {
		return fmt.Errorf("update contest state: %w", err)
	}
	if err := s.emitter.Emit(ctx, realtime.KindContest, contestID.String(), contest); err != nil {
		return fmt.Errorf("emit contest: %w", err)
	}

	log.Info().
		Str("contest_id", contestID.String()).
		Int("round", round).
		Msg("round opened")
	return nil
}

// closeRound stops the answering window, grades the question and eliminates
// everyone without the correct answer. Returns the survivor count.
func (s *Simulator) closeRound(ctx context.Context, contestID uuid.UUID, round int) (int, error) {
	contest, err := s.contests.UpdateContestState(ctx, contestID, models.ContestStateRoundClosed, &round)
	if err != nil {
		return 0, fmt.Errorf("close contest round: %w", err)
	}
	if err := s.emitter.Emit(ctx, realtime.KindContest, contestID.String(), contest); err != nil {
		return 0, fmt.Errorf("emit contest: %w", err)
	}

	rq := s.cfg.Questions[round-1]
	q, err := s.gradeRound(ctx, contestID, round, rq.Correct)
	if err != nil {
		return 0, err
	}

	return s.eliminate(ctx, contestID, round, q)
}

func (s *Simulator) gradeRound(ctx context.Context, contestID uuid.UUID, round int, correct string) (*models.Question, error) {
	// Refetching by round instead of holding the id keeps the simulator
	// resumable after a restart mid-contest.
	q, err := s.questions.GetQuestionByRound(ctx, contestID, round)
	if err != nil {
		return nil, fmt.Errorf("fetch round question: %w", err)
	}
	if q == nil {
		return nil, fmt.Errorf("round %d question missing", round)
	}

	graded, err := s.questions.GradeQuestion(ctx, q.ID, correct)
	if err != nil {
		return nil, fmt.Errorf("grade question: %w", err)
	}
	if err := s.emitter.Emit(ctx, realtime.KindQuestion, contestID.String(), graded); err != nil {
		return nil, fmt.Errorf("emit graded question: %w", err)
	}
	return graded, nil
}

func (s *Simulator) eliminate(ctx context.Context, contestID uuid.UUID, round int, q *models.Question) (int, error) {
	active, err := s.participants.ListActiveParticipants(ctx, contestID)
	if err != nil {
		return 0, fmt.Errorf("list active participants: %w", err)
	}

	answers, err := s.answers.ListAnswersByQuestion(ctx, q.ID)
	if err != nil {
		return 0, fmt.Errorf("list answers: %w", err)
	}
	answered := make(map[uuid.UUID]string, len(answers))
	for _, a := range answers {
		answered[a.ParticipantID] = a.Answer
	}

	survivors := 0
	for _, p := range active {
		if q.CorrectOption != nil && answered[p.ID] == *q.CorrectOption {
			survivors++
			continue
		}
		eliminated, err := s.participants.EliminateParticipant(ctx, p.ID, round)
		if err != nil {
			return 0, fmt.Errorf("eliminate participant %s: %w", p.ID, err)
		}
		if err := s.emitter.Emit(ctx, realtime.KindParticipant, p.ID.String(), eliminated); err != nil {
			return 0, fmt.Errorf("emit elimination: %w", err)
		}
	}
	return survivors, nil
}

func (s *Simulator) finish(ctx context.Context, contestID uuid.UUID) error {
	contest, err := s.contests.UpdateContestState(ctx, contestID, models.ContestStateFinished, nil)
	if err != nil {
		return fmt.Errorf("finish contest: %w", err)
	}
	if err := s.emitter.Emit(ctx, realtime.KindContest, contestID.String(), contest); err != nil {
		return fmt.Errorf("emit finished contest: %w", err)
	}

	log.Info().Str("contest_id", contestID.String()).Msg("contest finished")
	return nil
}

func (s *Simulator) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}
