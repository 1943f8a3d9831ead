package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/knockouthq/knockout/go/internal/models"
	"github.com/knockouthq/knockout/go/internal/question"
	"github.com/knockouthq/knockout/go/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorld struct {
	mu           sync.Mutex
	contest      models.Contest
	questions    map[int]*models.Question
	participants map[uuid.UUID]*models.Participant
	answers      []models.Answer
}

func newFakeWorld(contestID uuid.UUID, players int) *fakeWorld {
	w := &fakeWorld{
		contest: models.Contest{
			ID:    contestID,
			Name:  "test knockout",
			State: models.ContestStateLobbyOpen,
		},
		questions:    make(map[int]*models.Question),
		participants: make(map[uuid.UUID]*models.Participant),
	}
	for i := 0; i < players; i++ {
		p := &models.Participant{ID: uuid.New(), ContestID: contestID, UserID: uuid.New()}
		w.participants[p.ID] = p
	}
	return w
}

func (w *fakeWorld) UpdateContestState(ctx context.Context, id uuid.UUID, state models.ContestState, currentRound *int) (*models.Contest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.contest.State = state
	if currentRound != nil {
		round := *currentRound
		w.contest.CurrentRound = &round
	}
	snapshot := w.contest
	return &snapshot, nil
}

func (w *fakeWorld) GetQuestionByRound(ctx context.Context, contestID uuid.UUID, round int) (*models.Question, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	q, ok := w.questions[round]
	if !ok {
		return nil, nil
	}
	snapshot := *q
	return &snapshot, nil
}

func (w *fakeWorld) CreateQuestion(ctx context.Context, req question.CreateQuestionRequest) (*models.Question, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	q := &models.Question{
		ID:        uuid.New(),
		ContestID: req.ContestID,
		Round:     req.Round,
		Question:  req.Question,
		Options:   req.Options,
	}
	w.questions[req.Round] = q
	snapshot := *q
	return &snapshot, nil
}

func (w *fakeWorld) GradeQuestion(ctx context.Context, id uuid.UUID, correctOption string) (*models.Question, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, q := range w.questions {
		if q.ID == id {
			q.CorrectOption = &correctOption
			snapshot := *q
			return &snapshot, nil
		}
	}
	return nil, nil
}

func (w *fakeWorld) ListActiveParticipants(ctx context.Context, contestID uuid.UUID) ([]models.Participant, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var active []models.Participant
	for _, p := range w.participants {
		if !p.Eliminated() {
			active = append(active, *p)
		}
	}
	return active, nil
}

func (w *fakeWorld) EliminateParticipant(ctx context.Context, id uuid.UUID, round int) (*models.Participant, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := w.participants[id]
	if p.EliminationRound == nil {
		r := round
		p.EliminationRound = &r
	}
	snapshot := *p
	return &snapshot, nil
}

func (w *fakeWorld) ListAnswersByQuestion(ctx context.Context, questionID uuid.UUID) ([]models.Answer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []models.Answer
	for _, a := range w.answers {
		if a.QuestionID == questionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (w *fakeWorld) submit(participantID uuid.UUID, round int, option string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	q := w.questions[round]
	w.answers = append(w.answers, models.Answer{
		ID:            uuid.New(),
		ParticipantID: participantID,
		QuestionID:    q.ID,
		Round:         round,
		Answer:        option,
	})
}

func (w *fakeWorld) activeIDs() []uuid.UUID {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ids []uuid.UUID
	for id, p := range w.participants {
		if !p.Eliminated() {
			ids = append(ids, id)
		}
	}
	return ids
}

type recordingSink struct {
	mu     sync.Mutex
	events []realtime.ChangeEvent
}

func (s *recordingSink) Publish(event realtime.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) byKind(kind realtime.EntityKind) []realtime.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []realtime.ChangeEvent
	for _, ev := range s.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func testConfig() Config {
	return Config{
		LobbyDuration: 10 * time.Second,
		RoundDuration: 20 * time.Second,
		GradingDelay:  5 * time.Second,
		Questions: []RoundQuestion{
			{Prompt: "Capital of France?", Options: map[string]string{"A": "Paris", "B": "Lyon"}, Correct: "A"},
			{Prompt: "2 + 2?", Options: map[string]string{"A": "3", "B": "4"}, Correct: "B"},
		},
	}
}

func TestSimulatorRunsContestToCompletion(t *testing.T) {
	contestID := uuid.New()
	world := newFakeWorld(contestID, 3)
	sink := &recordingSink{}
	clock := clockwork.NewFakeClock()
	sim := NewSimulator(world, world, world, world, NewSinkEmitter(sink, clock.Now), clock, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx, contestID) }()

	// Lobby.
	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)

	// Round 1 open: two players answer correctly, one wrong.
	clock.BlockUntil(1)
	players := world.activeIDs()
	require.Len(t, players, 3)
	world.submit(players[0], 1, "A")
	world.submit(players[1], 1, "A")
	world.submit(players[2], 1, "B")
	clock.Advance(20 * time.Second)

	// Grading pause: the wrong answer is out.
	clock.BlockUntil(1)
	require.Len(t, world.activeIDs(), 2)
	clock.Advance(5 * time.Second)

	// Round 2 open: one survivor answers correctly.
	clock.BlockUntil(1)
	world.submit(players[0], 2, "B")
	clock.Advance(20 * time.Second)

	require.NoError(t, <-done)

	world.mu.Lock()
	finalState := world.contest.State
	world.mu.Unlock()
	assert.Equal(t, models.ContestStateFinished, finalState)
	assert.Len(t, world.activeIDs(), 1, "exactly one winner remains")

	// Every write was announced.
	contestEvents := sink.byKind(realtime.KindContest)
	questionEvents := sink.byKind(realtime.KindQuestion)
	participantEvents := sink.byKind(realtime.KindParticipant)
	assert.Len(t, contestEvents, 5, "2 opens + 2 closes + finish")
	assert.Len(t, questionEvents, 4, "2 publishes + 2 gradings")
	assert.Len(t, participantEvents, 2, "2 eliminations")
}

func TestSimulatorStopsWhenOneSurvivorRemains(t *testing.T) {
	contestID := uuid.New()
	world := newFakeWorld(contestID, 2)
	sink := &recordingSink{}
	clock := clockwork.NewFakeClock()
	sim := NewSimulator(world, world, world, world, NewSinkEmitter(sink, clock.Now), clock, testConfig())

	done := make(chan error, 1)
	go func() { done <- sim.Run(context.Background(), contestID) }()

	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)

	// Only one of two answers correctly in round 1.
	clock.BlockUntil(1)
	players := world.activeIDs()
	world.submit(players[0], 1, "A")
	clock.Advance(20 * time.Second)

	require.NoError(t, <-done)

	world.mu.Lock()
	finalState := world.contest.State
	world.mu.Unlock()
	assert.Equal(t, models.ContestStateFinished, finalState)
	assert.Nil(t, world.questions[2], "round 2 never opens")
}

func TestSimulatorCancelledMidContest(t *testing.T) {
	contestID := uuid.New()
	world := newFakeWorld(contestID, 2)
	sink := &recordingSink{}
	clock := clockwork.NewFakeClock()
	sim := NewSimulator(world, world, world, world, NewSinkEmitter(sink, clock.Now), clock, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx, contestID) }()

	clock.BlockUntil(1)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}
