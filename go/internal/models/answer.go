package models

import (
	"time"

	"github.com/google/uuid"
)

// Answer is a participant's answer to one question. At most one row exists per
// (participant, question); resubmitting updates the row in place.
type Answer struct {
	ID            uuid.UUID `json:"id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	QuestionID    uuid.UUID `json:"question_id"`
	Round         int       `json:"round"`
	Answer        string    `json:"answer"`
	Timestamp     time.Time `json:"timestamp"`
}
