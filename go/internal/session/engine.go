package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/knockouthq/knockout/go/internal/answer"
	"github.com/knockouthq/knockout/go/internal/apperrors"
	"github.com/knockouthq/knockout/go/internal/models"
	"github.com/knockouthq/knockout/go/internal/realtime"
	"github.com/rs/zerolog/log"
)

// ContestReader defines what the engine needs for contest reads.
type ContestReader interface {
	GetContest(ctx context.Context, id uuid.UUID) (*models.Contest, error)
}

// ParticipantStore defines what the engine needs for participant reads and
// the idempotent join.
type ParticipantStore interface {
	GetParticipant(ctx context.Context, contestID, userID uuid.UUID) (*models.Participant, error)
	GetOrCreateParticipant(ctx context.Context, contestID, userID uuid.UUID) (*models.Participant, error)
}

// QuestionReader defines what the engine needs for question reads.
type QuestionReader interface {
	GetQuestionByRound(ctx context.Context, contestID uuid.UUID, round int) (*models.Question, error)
}

// AnswerStore defines what the engine needs for answer reads and submits.
type AnswerStore interface {
	GetAnswer(ctx context.Context, participantID, questionID uuid.UUID) (*models.Answer, error)
	SubmitAnswer(ctx context.Context, req answer.SubmitAnswerRequest) (*models.Answer, error)
}

// Deps bundles the collaborators one engine instance needs.
type Deps struct {
	Contests     ContestReader
	Participants ParticipantStore
	Questions    QuestionReader
	Answers      AnswerStore
	Feed         realtime.Feed
	Clock        clockwork.Clock
}

// Snapshot is the engine's externally visible state at one instant. State is
// always Derive() of the four slots.
type Snapshot struct {
	ContestID   uuid.UUID
	Contest     *models.Contest
	Participant *models.Participant
	Question    *models.Question
	Answer      *models.Answer
	State       models.PlayerState
	Loading     bool
	Err         error
}

// Listener receives a snapshot after every accepted change.
type Listener func(Snapshot)

// Engine maintains a consistent in-memory view of one (contest, user) pair:
// initial load, realtime subscriptions with staleness filtering, refresh, and
// answer submission. All slot mutation is serialized under one mutex; feed
// callbacks arrive on transport goroutines and funnel through the same
// acceptance paths.
type Engine struct {
	deps      Deps
	contestID uuid.UUID
	userID    uuid.UUID
	listener  Listener

	mu          sync.Mutex
	contest     *models.Contest
	participant *models.Participant
	question    *models.Question
	answer      *models.Answer
	loading     bool
	lastErr     error
	closed      bool

	// trackedRound is the highest round seen from either an accepted contest
	// update or an accepted question. Question updates below it are stale and
	// dropped.
	trackedRound int

	subs           []realtime.Unsubscribe
	participantKey uuid.UUID // filter key the participant/answer subs are attached for
	partSubs       []realtime.Unsubscribe
}

// NewEngine creates an engine for one contest view. The listener may be nil.
func NewEngine(deps Deps, contestID, userID uuid.UUID, listener Listener) *Engine {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if listener == nil {
		listener = func(Snapshot) {}
	}
	return &Engine{
		deps:      deps,
		contestID: contestID,
		userID:    userID,
		listener:  listener,
		loading:   true,
	}
}

// Snapshot returns the current view.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		ContestID:   e.contestID,
		Contest:     e.contest,
		Participant: e.participant,
		Question:    e.question,
		Answer:      e.answer,
		State:       Derive(e.contest, e.participant, e.question, e.answer),
		Loading:     e.loading,
		Err:         e.lastErr,
	}
}

// notify emits a snapshot to the listener outside the lock.
func (e *Engine) notify() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.listener(snap)
}

// Load performs the initial fetch sequence: contest and participant
// concurrently, get-or-create when the user has not joined yet, then the
// current round's question and finally the existing answer. The first failed
// step aborts the rest of the call and lands the engine in an error state
// that requires an explicit retry.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("engine closed")
	}
	e.loading = true
	e.lastErr = nil
	e.mu.Unlock()
	e.notify()

	err := e.load(ctx)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return err
	}
	e.loading = false
	e.lastErr = err
	e.mu.Unlock()
	e.notify()
	return err
}

// Refresh re-runs the load sequence in full. Used for pull-to-refresh and the
// first screen-focus event. Fields are written independently and
// idempotently, so interleaved calls converge on last-write-wins per field.
func (e *Engine) Refresh(ctx context.Context) error {
	err := e.load(ctx)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return err
	}
	e.lastErr = err
	e.mu.Unlock()
	e.notify()
	return err
}

func (e *Engine) load(ctx context.Context) error {
	var (
		wg             sync.WaitGroup
		contest        *models.Contest
		participant    *models.Participant
		contestErr     error
		participantErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		contest, contestErr = e.deps.Contests.GetContest(ctx, e.contestID)
	}()
	go func() {
		defer wg.Done()
		participant, participantErr = e.deps.Participants.GetParticipant(ctx, e.contestID, e.userID)
	}()
	wg.Wait()

	if contestErr != nil {
		return apperrors.Wrap(contestErr, apperrors.KindNetwork, "failed to load contest")
	}
	if participantErr != nil {
		return apperrors.Wrap(participantErr, apperrors.KindNetwork, "failed to load participant")
	}

	if participant == nil && contest != nil {
		var err error
		participant, err = e.deps.Participants.GetOrCreateParticipant(ctx, e.contestID, e.userID)
		if err != nil {
			return apperrors.Wrap(err, apperrors.KindNetwork, "failed to join contest")
		}
	}

	if !e.applyContest(contest) || !e.applyParticipant(participant) {
		// Closed mid-flight, or the fetched rows are older than what the feed
		// already delivered. Either way the remaining fetches would target a
		// round the engine has moved past.
		return nil
	}

	if contest == nil || contest.CurrentRound == nil {
		return nil
	}

	question, err := e.deps.Questions.GetQuestionByRound(ctx, e.contestID, *contest.CurrentRound)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindNetwork, "failed to load question")
	}
	if question != nil && !e.applyQuestion(question) {
		return nil
	}

	if participant == nil || question == nil {
		return nil
	}

	ans, err := e.deps.Answers.GetAnswer(ctx, participant.ID, question.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindNetwork, "failed to load answer")
	}
	if ans != nil {
		e.applyAnswer(ans)
	}
	return nil
}

// AttachSubscriptions wires the four realtime slots. Idempotent: calling it
// again detaches the previous subscriptions first, and the participant-keyed
// pair is re-attached automatically when the participant id becomes known or
// changes.
func (e *Engine) AttachSubscriptions(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("engine closed")
	}
	prior := e.subs
	e.subs = nil
	participant := e.participant
	e.mu.Unlock()

	for _, unsub := range prior {
		unsub()
	}

	contestUnsub, err := e.deps.Feed.Subscribe(ctx, realtime.KindContest, e.contestID.String(), e.onContestEvent)
	if err != nil {
		return fmt.Errorf("subscribe contest: %w", err)
	}

	// Question changes are filtered by contest, not round: the round filter is
	// the engine's own staleness check.
	questionUnsub, err := e.deps.Feed.Subscribe(ctx, realtime.KindQuestion, e.contestID.String(), e.onQuestionEvent)
	if err != nil {
		contestUnsub()
		return fmt.Errorf("subscribe question: %w", err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		contestUnsub()
		questionUnsub()
		return fmt.Errorf("engine closed")
	}
	e.subs = append(e.subs, contestUnsub, questionUnsub)
	e.mu.Unlock()

	if participant != nil {
		if err := e.attachParticipantSubs(ctx, participant.ID); err != nil {
			return err
		}
	}
	return nil
}

// attachParticipantSubs (re)attaches the participant- and answer-row
// subscriptions for one participant id, detaching any pair attached for a
// previous id.
func (e *Engine) attachParticipantSubs(ctx context.Context, participantID uuid.UUID) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("engine closed")
	}
	if e.participantKey == participantID && len(e.partSubs) > 0 {
		e.mu.Unlock()
		return nil
	}
	prior := e.partSubs
	e.partSubs = nil
	e.participantKey = participantID
	e.mu.Unlock()

	for _, unsub := range prior {
		unsub()
	}

	participantUnsub, err := e.deps.Feed.Subscribe(ctx, realtime.KindParticipant, participantID.String(), e.onParticipantEvent)
	if err != nil {
		return fmt.Errorf("subscribe participant: %w", err)
	}
	answerUnsub, err := e.deps.Feed.Subscribe(ctx, realtime.KindAnswer, participantID.String(), e.onAnswerEvent)
	if err != nil {
		participantUnsub()
		return fmt.Errorf("subscribe answer: %w", err)
	}

	e.mu.Lock()
	if e.closed || e.participantKey != participantID {
		e.mu.Unlock()
		participantUnsub()
		answerUnsub()
		return nil
	}
	e.partSubs = append(e.partSubs, participantUnsub, answerUnsub)
	e.mu.Unlock()
	return nil
}

func (e *Engine) onContestEvent(event realtime.ChangeEvent) {
	contest, err := event.Contest()
	if err != nil {
		log.Error().Err(err).Str("contest_id", e.contestID.String()).Msg("bad contest change payload")
		return
	}
	if contest.ID != e.contestID {
		return
	}

	needFetch := false
	e.mu.Lock()
	if !e.closed && contest.CurrentRound != nil && *contest.CurrentRound > e.trackedRound {
		// The round advanced before the new question arrived on the feed;
		// fetch it rather than waiting on delivery order.
		needFetch = e.question == nil || e.question.Round < *contest.CurrentRound
	}
	e.mu.Unlock()

	if !e.applyContest(contest) {
		return
	}
	e.notify()

	if needFetch {
		go e.fetchRound(context.Background(), *contest.CurrentRound)
	}
}

// fetchRound pulls the question (and the player's answer to it) for a round
// that the contest row announced before the feed delivered it.
func (e *Engine) fetchRound(ctx context.Context, round int) {
	question, err := e.deps.Questions.GetQuestionByRound(ctx, e.contestID, round)
	if err != nil {
		log.Error().Err(err).Int("round", round).Msg("failed to fetch round question")
		return
	}
	if question == nil {
		return
	}
	if !e.applyQuestion(question) {
		return
	}
	e.notify()

	e.mu.Lock()
	participant := e.participant
	e.mu.Unlock()
	if participant == nil {
		return
	}

	ans, err := e.deps.Answers.GetAnswer(ctx, participant.ID, question.ID)
	if err != nil {
		log.Error().Err(err).Int("round", round).Msg("failed to fetch round answer")
		return
	}
	if ans != nil && e.applyAnswer(ans) {
		e.notify()
	}
}

func (e *Engine) onParticipantEvent(event realtime.ChangeEvent) {
	participant, err := event.Participant()
	if err != nil {
		log.Error().Err(err).Msg("bad participant change payload")
		return
	}
	if e.applyParticipant(participant) {
		e.notify()
	}
}

func (e *Engine) onQuestionEvent(event realtime.ChangeEvent) {
	question, err := event.Question()
	if err != nil {
		log.Error().Err(err).Msg("bad question change payload")
		return
	}
	if e.applyQuestion(question) {
		e.notify()
	}
}

func (e *Engine) onAnswerEvent(event realtime.ChangeEvent) {
	ans, err := event.Answer()
	if err != nil {
		log.Error().Err(err).Msg("bad answer change payload")
		return
	}
	if e.applyAnswer(ans) {
		e.notify()
	}
}

// applyContest accepts a contest update only if its round is not older than
// the tracked round, then advances the tracked round. A row without a current
// round counts as round zero.
func (e *Engine) applyContest(contest *models.Contest) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	if contest != nil {
		incoming := 0
		if contest.CurrentRound != nil {
			incoming = *contest.CurrentRound
		}
		if incoming < e.trackedRound {
			log.Debug().
				Int("incoming_round", incoming).
				Int("tracked_round", e.trackedRound).
				Msg("dropping stale contest update")
			return false
		}
		if incoming > e.trackedRound {
			e.trackedRound = incoming
		}
	}
	e.contest = contest
	return true
}

// applyParticipant accepts a participant update. Elimination is monotonic: an
// update that clears a recorded elimination is stale and dropped.
func (e *Engine) applyParticipant(participant *models.Participant) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	if participant != nil && e.participant != nil &&
		participant.ID == e.participant.ID &&
		e.participant.Eliminated() && !participant.Eliminated() {
		log.Warn().
			Str("participant_id", participant.ID.String()).
			Msg("dropping participant update that reverts elimination")
		return false
	}
	e.participant = participant
	return true
}

// applyQuestion accepts a question update only if it is not older than the
// tracked round. Accepting also clears a cached answer belonging to a
// different round so a new round never shows a stale "already answered".
func (e *Engine) applyQuestion(question *models.Question) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || question == nil {
		return false
	}
	if question.Round < e.trackedRound {
		log.Debug().
			Int("incoming_round", question.Round).
			Int("tracked_round", e.trackedRound).
			Msg("dropping stale question update")
		return false
	}
	e.question = question
	if question.Round > e.trackedRound {
		e.trackedRound = question.Round
	}
	if e.answer != nil && e.answer.Round != question.Round {
		e.answer = nil
	}
	return true
}

// applyAnswer accepts an answer update unless it belongs to a different round
// than the question on display.
func (e *Engine) applyAnswer(ans *models.Answer) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || ans == nil {
		return false
	}
	if e.question != nil && ans.Round != e.question.Round {
		return false
	}
	e.answer = ans
	return true
}

// Submit writes the player's answer for the current question. No optimistic
// local write: the engine converges via the realtime echo. Submit errors
// surface to the caller and leave the slots untouched.
func (e *Engine) Submit(ctx context.Context, optionKey string) error {
	e.mu.Lock()
	participant := e.participant
	question := e.question
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return fmt.Errorf("engine closed")
	}
	if participant == nil {
		return apperrors.Validation("cannot submit before joining the contest")
	}
	if question == nil {
		return apperrors.Validation("no question to answer")
	}
	if _, ok := question.Options[optionKey]; !ok {
		return apperrors.Validationf("option %q is not one of the question's options", optionKey)
	}

	_, err := e.deps.Answers.SubmitAnswer(ctx, answer.SubmitAnswerRequest{
		ParticipantID: participant.ID,
		QuestionID:    question.ID,
		Round:         question.Round,
		Answer:        optionKey,
	})
	if err != nil {
		return fmt.Errorf("failed to submit answer: %w", err)
	}

	log.Debug().
		Str("contest_id", e.contestID.String()).
		Int("round", question.Round).
		Str("option", optionKey).
		Msg("answer submitted")
	return nil
}

// EnsureParticipantSubs re-checks whether the participant-keyed subscriptions
// match the current participant and re-attaches them when not. Callers invoke
// it after Load resolves a participant for the first time.
func (e *Engine) EnsureParticipantSubs(ctx context.Context) error {
	e.mu.Lock()
	participant := e.participant
	e.mu.Unlock()
	if participant == nil {
		return nil
	}
	return e.attachParticipantSubs(ctx, participant.ID)
}

// Close tears the engine down: late fetch results are dropped and every
// subscription is released. Safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	subs := append(e.subs, e.partSubs...)
	e.subs = nil
	e.partSubs = nil
	e.mu.Unlock()

	for _, unsub := range subs {
		unsub()
	}
}
