package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/knockouthq/knockout/go/internal/realtime"
)

// Emitter publishes one entity change to whatever transport the simulator
// runs against.
type Emitter interface {
	Emit(ctx context.Context, kind realtime.EntityKind, key string, payload any) error
}

// EventSink accepts fully formed change events. Both the memory feed and the
// websocket hub satisfy it.
type EventSink interface {
	Publish(event realtime.ChangeEvent)
}

// SinkEmitter wraps rows into change envelopes and hands them to a sink.
type SinkEmitter struct {
	sink EventSink
	now  func() time.Time
}

func NewSinkEmitter(sink EventSink, now func() time.Time) *SinkEmitter {
	if now == nil {
		now = time.Now
	}
	return &SinkEmitter{sink: sink, now: now}
}

func (e *SinkEmitter) Emit(ctx context.Context, kind realtime.EntityKind, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	e.sink.Publish(realtime.ChangeEvent{
		ID:      uuid.NewString(),
		Kind:    kind,
		Key:     key,
		At:      e.now(),
		Payload: data,
	})
	return nil
}
