package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/knockouthq/knockout/go/internal/realtime"
)

// Event is one row of the contest outbox. Writers insert a row in the same
// transaction as the entity change; the listener relays it to the stream and
// marks it sent. Key carries the subscription filter key for the entity kind
// (contest id for contest and question rows, participant id for participant
// and answer rows).
type Event struct {
	ID        uuid.UUID           `json:"id"`
	Kind      realtime.EntityKind `json:"kind"`
	Key       string              `json:"key"`
	Payload   json.RawMessage     `json:"payload,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	SentAt    *time.Time          `json:"sent_at,omitempty"`
}

// ChangeEvent converts the outbox row into the wire envelope consumed by
// feed subscribers.
func (e Event) ChangeEvent() realtime.ChangeEvent {
	return realtime.ChangeEvent{
		ID:      e.ID.String(),
		Kind:    e.Kind,
		Key:     e.Key,
		At:      e.CreatedAt,
		Payload: e.Payload,
	}
}
