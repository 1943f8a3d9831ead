package realtime

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Handler receives one change event. Handlers run on transport goroutines and
// must not block for long.
type Handler func(ChangeEvent)

// Unsubscribe releases one subscription. Calling it more than once is a no-op.
type Unsubscribe func()

// Feed is a per-entity change feed. Subscribe registers a handler for every
// change to entities of the given kind matching the filter key.
type Feed interface {
	Subscribe(ctx context.Context, kind EntityKind, key string, fn Handler) (Unsubscribe, error)
}

// dispatch invokes a handler and contains any panic. A single malformed
// payload or handler bug must not kill the channel it arrived on.
func dispatch(fn Handler, event ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("kind", string(event.Kind)).
				Str("key", event.Key).
				Msg("change handler panicked")
		}
	}()
	fn(event)
}
