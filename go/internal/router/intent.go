package router

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// PendingResultIntent records that a notification sent the user to a result
// screen in anticipation of state that has not landed yet. The guard holds on
// the target screen instead of bouncing until the state catches up.
type PendingResultIntent struct {
	ContestID  uuid.UUID
	Path       string
	ReceivedAt time.Time
}

// IntentStore holds at most one pending result intent for the process.
// Single-writer by construction: only the notification observer sets it, only
// the guard or an explicit dismiss clears it. Reads are safe from any number
// of concurrently mounted screens.
type IntentStore struct {
	mu     sync.RWMutex
	intent *PendingResultIntent
	clock  clockwork.Clock
}

func NewIntentStore(clock clockwork.Clock) *IntentStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &IntentStore{clock: clock}
}

// Set records a new pending intent, replacing any previous one.
func (s *IntentStore) Set(contestID uuid.UUID, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intent = &PendingResultIntent{
		ContestID:  contestID,
		Path:       path,
		ReceivedAt: s.clock.Now(),
	}
	log.Debug().
		Str("contest_id", contestID.String()).
		Str("path", path).
		Msg("pending result intent set")
}

// Peek returns a copy of the current intent, or nil.
func (s *IntentStore) Peek() *PendingResultIntent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.intent == nil {
		return nil
	}
	copy := *s.intent
	return &copy
}

// Clear discards the intent. Clearing twice is a no-op.
func (s *IntentStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intent != nil {
		log.Debug().Str("path", s.intent.Path).Msg("pending result intent cleared")
	}
	s.intent = nil
}
