package models

import (
	"time"

	"github.com/google/uuid"
)

// ContestState defines the lifecycle state of a contest.
type ContestState string

const (
	ContestStateLobbyOpen       ContestState = "LOBBY_OPEN"
	ContestStateRoundInProgress ContestState = "ROUND_IN_PROGRESS"
	ContestStateRoundClosed     ContestState = "ROUND_CLOSED"
	ContestStateFinished        ContestState = "FINISHED"
)

// Contest represents a live elimination trivia contest. The contest row is
// server-owned; clients only read it.
type Contest struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	State        ContestState `json:"state"`
	CurrentRound *int         `json:"current_round,omitempty"` // nil until the first round opens
	StartTime    time.Time    `json:"start_time"`
	Price        float64      `json:"price"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
