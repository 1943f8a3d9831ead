package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/knockouthq/knockout/go/internal/apperrors"
	"github.com/knockouthq/knockout/go/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*Event
	sent   []uuid.UUID
}

func newFakeStore(events ...Event) *fakeStore {
	s := &fakeStore{events: make(map[uuid.UUID]*Event)}
	for i := range events {
		s.events[events[i].ID] = &events[i]
	}
	return s
}

func (s *fakeStore) FetchByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok || event.SentAt != nil {
		return nil, apperrors.NotFoundf("outbox event %s not found or already sent", id)
	}
	return event, nil
}

func (s *fakeStore) FetchUnsent(ctx context.Context, limit int32) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var unsent []Event
	for _, event := range s.events {
		if event.SentAt == nil {
			unsent = append(unsent, *event)
		}
	}
	return unsent, nil
}

func (s *fakeStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if event, ok := s.events[id]; ok {
		event.SentAt = &now
	}
	s.sent = append(s.sent, id)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []Event
	failures  int
}

func (p *fakePublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, event)
	return nil
}

func testListener(store Store, publisher Publisher) *Listener {
	cfg := DefaultListenerConfig()
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Millisecond
	return &Listener{store: store, publisher: publisher, cfg: cfg}
}

func TestHandleNotificationRelaysAndMarksSent(t *testing.T) {
	event := Event{ID: uuid.New(), Kind: realtime.KindContest, Key: uuid.NewString(), CreatedAt: time.Now()}
	store := newFakeStore(event)
	publisher := &fakePublisher{}
	l := testListener(store, publisher)

	err := l.handleNotification(context.Background(), event.ID.String())
	require.NoError(t, err)
	require.Len(t, publisher.published, 1)
	assert.Equal(t, event.ID, publisher.published[0].ID)
	assert.Equal(t, []uuid.UUID{event.ID}, store.sent)
}

func TestHandleNotificationRejectsBadPayload(t *testing.T) {
	l := testListener(newFakeStore(), &fakePublisher{})

	err := l.handleNotification(context.Background(), "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid event ID")
}

func TestHandleNotificationAlreadySentRow(t *testing.T) {
	now := time.Now()
	event := Event{ID: uuid.New(), Kind: realtime.KindAnswer, Key: "p1", SentAt: &now}
	store := newFakeStore(event)
	publisher := &fakePublisher{}
	l := testListener(store, publisher)

	// The fallback poll beat the notification to the row; nothing to do.
	err := l.handleNotification(context.Background(), event.ID.String())
	require.NoError(t, err)
	assert.Empty(t, publisher.published, "already relayed rows are not republished")
}

func TestPublishRetriesUntilSuccess(t *testing.T) {
	event := Event{ID: uuid.New(), Kind: realtime.KindQuestion, Key: "c1", CreatedAt: time.Now()}
	store := newFakeStore(event)
	publisher := &fakePublisher{failures: 2}
	l := testListener(store, publisher)

	err := l.relay(context.Background(), event)
	require.NoError(t, err)
	assert.Len(t, publisher.published, 1)
	assert.Equal(t, []uuid.UUID{event.ID}, store.sent)
}

func TestPublishGivesUpAfterMaxRetries(t *testing.T) {
	event := Event{ID: uuid.New(), Kind: realtime.KindQuestion, Key: "c1", CreatedAt: time.Now()}
	store := newFakeStore(event)
	publisher := &fakePublisher{failures: 10}
	l := testListener(store, publisher)

	err := l.relay(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish failed after 3 attempts")
	assert.Empty(t, store.sent, "failed events stay unsent for the fallback poll")
}

func TestProcessUnsentDrainsBacklog(t *testing.T) {
	events := []Event{
		{ID: uuid.New(), Kind: realtime.KindContest, Key: "c1", CreatedAt: time.Now()},
		{ID: uuid.New(), Kind: realtime.KindParticipant, Key: "p1", CreatedAt: time.Now()},
	}
	store := newFakeStore(events...)
	publisher := &fakePublisher{}
	l := testListener(store, publisher)

	require.NoError(t, l.processUnsent(context.Background()))
	assert.Len(t, publisher.published, 2)
	assert.Len(t, store.sent, 2)

	// A second pass finds nothing left.
	require.NoError(t, l.processUnsent(context.Background()))
	assert.Len(t, publisher.published, 2)
}
