package models

import (
	"time"

	"github.com/google/uuid"
)

// Question is the single question for one (contest, round) pair. Options maps
// option keys (e.g. "A") to display labels. CorrectOption transitions
// nil -> set exactly once per round when the server grades the round.
type Question struct {
	ID            uuid.UUID         `json:"id"`
	ContestID     uuid.UUID         `json:"contest_id"`
	Round         int               `json:"round"`
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectOption *string           `json:"correct_option,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Graded reports whether the server has published the correct option.
func (q *Question) Graded() bool {
	return q.CorrectOption != nil
}
