package outbox

import (
	"context"

	"github.com/knockouthq/knockout/go/internal/realtime"
)

// EventSink accepts fully formed change events in process. Both the memory
// feed and the simulator's websocket hub satisfy it.
type EventSink interface {
	Publish(event realtime.ChangeEvent)
}

// FeedPublisher relays outbox events straight into an in-process sink. The
// simulator's inline relay mode uses it to serve websocket clients without a
// broker.
type FeedPublisher struct {
	sink EventSink
}

func NewFeedPublisher(sink EventSink) *FeedPublisher {
	return &FeedPublisher{sink: sink}
}

func (p *FeedPublisher) Publish(ctx context.Context, event Event) error {
	p.sink.Publish(event.ChangeEvent())
	return nil
}
