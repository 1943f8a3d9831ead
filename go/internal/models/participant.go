package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant links a user to a contest. EliminationRound is monotonic: once
// the server sets it, it never reverts to nil.
type Participant struct {
	ID               uuid.UUID `json:"id"`
	ContestID        uuid.UUID `json:"contest_id"`
	UserID           uuid.UUID `json:"user_id"`
	EliminationRound *int      `json:"elimination_round,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Eliminated reports whether the participant has been knocked out.
func (p *Participant) Eliminated() bool {
	return p.EliminationRound != nil
}
