package realtime

import (
	"context"
	"sync"
)

// MemoryFeed is an in-process feed. The simulator uses it as a loopback
// transport and tests use it to drive the synchronization engine directly.
type MemoryFeed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string]map[int]Handler)}
}

// Subscribe registers a handler for (kind, key) changes.
func (f *MemoryFeed) Subscribe(ctx context.Context, kind EntityKind, key string, fn Handler) (Unsubscribe, error) {
	subject := Subject(kind, key)

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	if f.subs[subject] == nil {
		f.subs[subject] = make(map[int]Handler)
	}
	f.subs[subject][id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs[subject], id)
			if len(f.subs[subject]) == 0 {
				delete(f.subs, subject)
			}
		})
	}, nil
}

// Publish delivers an event synchronously to every matching handler.
func (f *MemoryFeed) Publish(event ChangeEvent) {
	subject := Subject(event.Kind, event.Key)

	f.mu.RLock()
	handlers := make([]Handler, 0, len(f.subs[subject]))
	for _, fn := range f.subs[subject] {
		handlers = append(handlers, fn)
	}
	f.mu.RUnlock()

	for _, fn := range handlers {
		dispatch(fn, event)
	}
}

// SubscriberCount reports how many handlers are registered for (kind, key).
func (f *MemoryFeed) SubscriberCount(kind EntityKind, key string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[Subject(kind, key)])
}
