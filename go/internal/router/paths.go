package router

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/knockouthq/knockout/go/internal/models"
)

// Routes outside the per-contest scheme.
const (
	PathLogin    = "/login"
	PathContests = "/contests"
)

// PathFor returns the canonical route for a player state within a contest.
// UNKNOWN has no route: it means "insufficient data, stay put".
func PathFor(state models.PlayerState, contestID uuid.UUID) (string, bool) {
	var segment string
	switch state {
	case models.PlayerStateLobby:
		segment = "lobby"
	case models.PlayerStateAnswering:
		segment = "game"
	case models.PlayerStateSubmittedWaiting:
		segment = "submitted"
	case models.PlayerStateCorrectWaitingNext:
		segment = "correct"
	case models.PlayerStateEliminated:
		segment = "eliminated"
	case models.PlayerStateWinner:
		segment = "winner"
	default:
		return "", false
	}
	return fmt.Sprintf("/%s/%s", segment, contestID), true
}

// ParsePath splits a contest route into its implied player state and contest
// id. Returns ok=false for routes outside the scheme.
func ParsePath(path string) (models.PlayerState, uuid.UUID, bool) {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) != 2 {
		return models.PlayerStateUnknown, uuid.Nil, false
	}

	var state models.PlayerState
	switch parts[0] {
	case "lobby":
		state = models.PlayerStateLobby
	case "game":
		state = models.PlayerStateAnswering
	case "submitted":
		state = models.PlayerStateSubmittedWaiting
	case "correct":
		state = models.PlayerStateCorrectWaitingNext
	case "eliminated":
		state = models.PlayerStateEliminated
	case "winner":
		state = models.PlayerStateWinner
	default:
		return models.PlayerStateUnknown, uuid.Nil, false
	}

	contestID, err := uuid.Parse(parts[1])
	if err != nil {
		return models.PlayerStateUnknown, uuid.Nil, false
	}
	return state, contestID, true
}

// ResultPath reports whether the route is a round-result screen, the kind a
// push notification may send the user to ahead of the data.
func ResultPath(path string) bool {
	state, _, ok := ParsePath(path)
	if !ok {
		return false
	}
	return state == models.PlayerStateCorrectWaitingNext || state == models.PlayerStateEliminated
}
