package router

import (
	"github.com/google/uuid"
	"github.com/knockouthq/knockout/go/internal/models"
	"github.com/rs/zerolog/log"
)

// NavMode selects how a navigation affects history.
type NavMode string

const (
	NavPush    NavMode = "push"
	NavReplace NavMode = "replace"
)

// Navigator is the navigation primitive the guard and the notification
// observer consume.
type Navigator interface {
	Navigate(path string, mode NavMode)
	CurrentPath() string
}

// Decision says what a screen may show this frame.
type Decision int

const (
	// DecisionRender shows the screen's real content.
	DecisionRender Decision = iota
	// DecisionHold shows a loading placeholder and stays put: either the
	// state is UNKNOWN (insufficient data) or a pending result intent is
	// waiting for the state to catch up.
	DecisionHold
	// DecisionRedirect shows a loading placeholder; Commit will navigate.
	DecisionRedirect
)

// Evaluation is the outcome of one Decide call.
type Evaluation struct {
	Decision     Decision
	RedirectPath string
}

// Input is the derived view state a screen evaluates against.
type Input struct {
	ContestID uuid.UUID
	State     models.PlayerState
	Loading   bool
}

// Guard keeps one screen's rendered content consistent with the derived
// player state. Decide is pure and safe to call during render; Commit runs
// the side effects afterwards, so the wrong screen is never committed to the
// visible tree even transiently, and at most one redirect fires per mismatch
// episode.
type Guard struct {
	validState models.PlayerState
	path       string // this screen's canonical path
	nav        Navigator
	intents    *IntentStore

	redirected bool
}

// NewGuard creates the guard for one screen instance. validState is the
// player state this screen is allowed to render; path is the screen's own
// canonical route.
func NewGuard(validState models.PlayerState, path string, nav Navigator, intents *IntentStore) *Guard {
	return &Guard{
		validState: validState,
		path:       path,
		nav:        nav,
		intents:    intents,
	}
}

// Decide computes what the screen may show. No side effects.
func (g *Guard) Decide(in Input) Evaluation {
	if in.Loading || in.State == g.validState {
		return Evaluation{Decision: DecisionRender}
	}

	if g.holding(in) {
		return Evaluation{Decision: DecisionHold}
	}

	if in.State == models.PlayerStateUnknown {
		// Insufficient data never redirects.
		return Evaluation{Decision: DecisionHold}
	}

	target, ok := PathFor(in.State, in.ContestID)
	if !ok {
		return Evaluation{Decision: DecisionHold}
	}
	return Evaluation{Decision: DecisionRedirect, RedirectPath: target}
}

// holding reports whether a pending result intent pins the user to this
// screen while the state is still transitional.
func (g *Guard) holding(in Input) bool {
	if g.intents == nil {
		return false
	}
	intent := g.intents.Peek()
	if intent == nil {
		return false
	}
	return intent.ContestID == in.ContestID &&
		intent.Path == g.path &&
		in.State.Transitional()
}

// Commit runs the post-render effects for an evaluation: clearing a satisfied
// intent and issuing at most one redirect per mismatch episode.
func (g *Guard) Commit(in Input, ev Evaluation) {
	g.clearSatisfiedIntent(in)

	switch ev.Decision {
	case DecisionRender, DecisionHold:
		// The mismatch episode (if any) is over; a future mismatch may
		// redirect again.
		if ev.Decision == DecisionRender {
			g.redirected = false
		}
	case DecisionRedirect:
		if g.redirected {
			return
		}
		g.redirected = true
		log.Debug().
			Str("from", g.path).
			Str("to", ev.RedirectPath).
			Str("state", string(in.State)).
			Msg("redirecting to match player state")
		g.nav.Navigate(ev.RedirectPath, NavReplace)
	}
}

// clearSatisfiedIntent clears the pending intent once the player state has
// reached the state the intent's path implies. Idempotent.
func (g *Guard) clearSatisfiedIntent(in Input) {
	if g.intents == nil {
		return
	}
	intent := g.intents.Peek()
	if intent == nil || intent.ContestID != in.ContestID || intent.Path != g.path {
		return
	}
	implied, _, ok := ParsePath(intent.Path)
	if ok && in.State == implied {
		g.intents.Clear()
	}
}
