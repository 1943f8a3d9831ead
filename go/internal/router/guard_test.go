package router

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/knockouthq/knockout/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNavigator records navigation events.
type fakeNavigator struct {
	mu      sync.Mutex
	current string
	events  []navEvent
}

type navEvent struct {
	Path string
	Mode NavMode
}

func (n *fakeNavigator) Navigate(path string, mode NavMode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, navEvent{Path: path, Mode: mode})
	n.current = path
}

func (n *fakeNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *fakeNavigator) eventCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func TestGuardRendersWhileLoading(t *testing.T) {
	nav := &fakeNavigator{}
	contestID := uuid.New()
	path, _ := PathFor(models.PlayerStateLobby, contestID)
	guard := NewGuard(models.PlayerStateLobby, path, nav, NewIntentStore(clockwork.NewFakeClock()))

	in := Input{ContestID: contestID, State: models.PlayerStateAnswering, Loading: true}
	ev := guard.Decide(in)
	guard.Commit(in, ev)

	assert.Equal(t, DecisionRender, ev.Decision)
	assert.Zero(t, nav.eventCount())
}

func TestGuardRendersOnMatch(t *testing.T) {
	nav := &fakeNavigator{}
	contestID := uuid.New()
	path, _ := PathFor(models.PlayerStateLobby, contestID)
	guard := NewGuard(models.PlayerStateLobby, path, nav, NewIntentStore(clockwork.NewFakeClock()))

	in := Input{ContestID: contestID, State: models.PlayerStateLobby}
	ev := guard.Decide(in)
	guard.Commit(in, ev)

	assert.Equal(t, DecisionRender, ev.Decision)
	assert.Zero(t, nav.eventCount())
}

func TestGuardRedirectSingularity(t *testing.T) {
	nav := &fakeNavigator{}
	contestID := uuid.New()
	lobbyPath, _ := PathFor(models.PlayerStateLobby, contestID)
	guard := NewGuard(models.PlayerStateLobby, lobbyPath, nav, NewIntentStore(clockwork.NewFakeClock()))

	in := Input{ContestID: contestID, State: models.PlayerStateAnswering}

	// The mismatched screen's children must never render, and repeated
	// evaluations of the same mismatch must issue exactly one redirect.
	for i := 0; i < 5; i++ {
		ev := guard.Decide(in)
		require.Equal(t, DecisionRedirect, ev.Decision)
		gamePath, _ := PathFor(models.PlayerStateAnswering, contestID)
		require.Equal(t, gamePath, ev.RedirectPath)
		guard.Commit(in, ev)
	}

	assert.Equal(t, 1, nav.eventCount())
	assert.Equal(t, NavReplace, nav.events[0].Mode)
}

func TestGuardRedirectsAgainAfterRecovery(t *testing.T) {
	nav := &fakeNavigator{}
	contestID := uuid.New()
	lobbyPath, _ := PathFor(models.PlayerStateLobby, contestID)
	guard := NewGuard(models.PlayerStateLobby, lobbyPath, nav, NewIntentStore(clockwork.NewFakeClock()))

	mismatch := Input{ContestID: contestID, State: models.PlayerStateAnswering}
	match := Input{ContestID: contestID, State: models.PlayerStateLobby}

	guard.Commit(mismatch, guard.Decide(mismatch))
	require.Equal(t, 1, nav.eventCount())

	// Back in a matching state ends the episode.
	guard.Commit(match, guard.Decide(match))

	// A new mismatch may redirect again.
	guard.Commit(mismatch, guard.Decide(mismatch))
	assert.Equal(t, 2, nav.eventCount())
}

func TestGuardUnknownNeverRedirects(t *testing.T) {
	nav := &fakeNavigator{}
	contestID := uuid.New()
	path, _ := PathFor(models.PlayerStateLobby, contestID)
	guard := NewGuard(models.PlayerStateLobby, path, nav, NewIntentStore(clockwork.NewFakeClock()))

	in := Input{ContestID: contestID, State: models.PlayerStateUnknown}
	ev := guard.Decide(in)
	guard.Commit(in, ev)

	assert.Equal(t, DecisionHold, ev.Decision)
	assert.Zero(t, nav.eventCount())
}

func TestGuardHoldThenRelease(t *testing.T) {
	nav := &fakeNavigator{}
	contestID := uuid.New()
	correctPath, _ := PathFor(models.PlayerStateCorrectWaitingNext, contestID)
	intents := NewIntentStore(clockwork.NewFakeClock())
	guard := NewGuard(models.PlayerStateCorrectWaitingNext, correctPath, nav, intents)

	// A notification sent the user here before the data landed.
	intents.Set(contestID, correctPath)

	// Still waiting on grading: hold the placeholder, no bounce.
	waiting := Input{ContestID: contestID, State: models.PlayerStateSubmittedWaiting}
	ev := guard.Decide(waiting)
	guard.Commit(waiting, ev)
	require.Equal(t, DecisionHold, ev.Decision)
	require.Zero(t, nav.eventCount())
	require.NotNil(t, intents.Peek())

	// The state catches up: render and clear the intent.
	arrived := Input{ContestID: contestID, State: models.PlayerStateCorrectWaitingNext}
	ev = guard.Decide(arrived)
	guard.Commit(arrived, ev)
	assert.Equal(t, DecisionRender, ev.Decision)
	assert.Zero(t, nav.eventCount())
	assert.Nil(t, intents.Peek())

	// Clearing again is a no-op.
	guard.Commit(arrived, guard.Decide(arrived))
	assert.Nil(t, intents.Peek())
}

func TestGuardHoldOnlyForTransitionalStates(t *testing.T) {
	nav := &fakeNavigator{}
	contestID := uuid.New()
	correctPath, _ := PathFor(models.PlayerStateCorrectWaitingNext, contestID)
	intents := NewIntentStore(clockwork.NewFakeClock())
	guard := NewGuard(models.PlayerStateCorrectWaitingNext, correctPath, nav, intents)

	intents.Set(contestID, correctPath)

	// A settled contradictory state redirects despite the intent: the
	// notification was wrong, the data is not.
	in := Input{ContestID: contestID, State: models.PlayerStateEliminated}
	ev := guard.Decide(in)
	guard.Commit(in, ev)

	require.Equal(t, DecisionRedirect, ev.Decision)
	eliminatedPath, _ := PathFor(models.PlayerStateEliminated, contestID)
	assert.Equal(t, eliminatedPath, ev.RedirectPath)
	assert.Equal(t, 1, nav.eventCount())
}

func TestGuardIgnoresIntentForOtherScreen(t *testing.T) {
	nav := &fakeNavigator{}
	contestID := uuid.New()
	lobbyPath, _ := PathFor(models.PlayerStateLobby, contestID)
	correctPath, _ := PathFor(models.PlayerStateCorrectWaitingNext, contestID)
	intents := NewIntentStore(clockwork.NewFakeClock())
	guard := NewGuard(models.PlayerStateLobby, lobbyPath, nav, intents)

	intents.Set(contestID, correctPath)

	// The intent targets the correct screen, not this one; normal redirect
	// rules apply here.
	in := Input{ContestID: contestID, State: models.PlayerStateSubmittedWaiting}
	ev := guard.Decide(in)
	guard.Commit(in, ev)

	assert.Equal(t, DecisionRedirect, ev.Decision)
	assert.NotNil(t, intents.Peek(), "intent for another screen must survive")
}

func TestPathRoundTrip(t *testing.T) {
	contestID := uuid.New()
	states := []models.PlayerState{
		models.PlayerStateLobby,
		models.PlayerStateAnswering,
		models.PlayerStateSubmittedWaiting,
		models.PlayerStateCorrectWaitingNext,
		models.PlayerStateEliminated,
		models.PlayerStateWinner,
	}

	for _, state := range states {
		path, ok := PathFor(state, contestID)
		require.True(t, ok)
		parsed, id, ok := ParsePath(path)
		require.True(t, ok, "path %s must parse", path)
		assert.Equal(t, state, parsed)
		assert.Equal(t, contestID, id)
	}

	_, ok := PathFor(models.PlayerStateUnknown, contestID)
	assert.False(t, ok, "UNKNOWN has no route")

	_, _, ok = ParsePath("/settings")
	assert.False(t, ok)
}

func TestResultPath(t *testing.T) {
	contestID := uuid.New()
	correct, _ := PathFor(models.PlayerStateCorrectWaitingNext, contestID)
	eliminated, _ := PathFor(models.PlayerStateEliminated, contestID)
	game, _ := PathFor(models.PlayerStateAnswering, contestID)

	assert.True(t, ResultPath(correct))
	assert.True(t, ResultPath(eliminated))
	assert.False(t, ResultPath(game))
	assert.False(t, ResultPath("/contests"))
}

func TestIntentStoreConcurrentReaders(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewIntentStore(clock)
	contestID := uuid.New()
	path, _ := PathFor(models.PlayerStateCorrectWaitingNext, contestID)

	store.Set(contestID, path)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if intent := store.Peek(); intent != nil {
					_ = intent.Path
				}
			}
		}()
	}
	store.Clear()
	store.Clear()
	wg.Wait()

	assert.Nil(t, store.Peek())
}

func TestIntentStoreStampsReceivedAt(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewIntentStore(clock)
	contestID := uuid.New()
	path, _ := PathFor(models.PlayerStateEliminated, contestID)

	store.Set(contestID, path)
	intent := store.Peek()
	require.NotNil(t, intent)
	assert.Equal(t, clock.Now(), intent.ReceivedAt)
	assert.Equal(t, contestID, intent.ContestID)
}
