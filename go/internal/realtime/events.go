package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/knockouthq/knockout/go/internal/models"
)

// EntityKind identifies which entity type a change event carries.
type EntityKind string

const (
	KindContest     EntityKind = "contest"
	KindParticipant EntityKind = "participant"
	KindQuestion    EntityKind = "question"
	KindAnswer      EntityKind = "answer"
)

// ChangeEvent is the envelope for one entity change. Key is the filter key
// the subscriber registered for (contest id for contest and question changes,
// participant id for participant and answer changes). Payload holds the full
// row after the change. Delivery is at-least-once with no ordering guarantee
// across kinds; consumers must apply their own monotonicity checks.
type ChangeEvent struct {
	ID      string          `json:"id"`
	Kind    EntityKind      `json:"kind"`
	Key     string          `json:"key"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// Contest decodes the payload as a contest row.
func (e ChangeEvent) Contest() (*models.Contest, error) {
	var c models.Contest
	if err := json.Unmarshal(e.Payload, &c); err != nil {
		return nil, fmt.Errorf("decode contest payload: %w", err)
	}
	return &c, nil
}

// Participant decodes the payload as a participant row.
func (e ChangeEvent) Participant() (*models.Participant, error) {
	var p models.Participant
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode participant payload: %w", err)
	}
	return &p, nil
}

// Question decodes the payload as a question row.
func (e ChangeEvent) Question() (*models.Question, error) {
	var q models.Question
	if err := json.Unmarshal(e.Payload, &q); err != nil {
		return nil, fmt.Errorf("decode question payload: %w", err)
	}
	return &q, nil
}

// Answer decodes the payload as an answer row.
func (e ChangeEvent) Answer() (*models.Answer, error) {
	var a models.Answer
	if err := json.Unmarshal(e.Payload, &a); err != nil {
		return nil, fmt.Errorf("decode answer payload: %w", err)
	}
	return &a, nil
}

// Subject returns the transport subject for a (kind, key) pair, e.g.
// "contest.changes.question.<contest-id>".
func Subject(kind EntityKind, key string) string {
	return fmt.Sprintf("contest.changes.%s.%s", kind, key)
}
