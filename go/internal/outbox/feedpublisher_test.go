package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/knockouthq/knockout/go/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedPublisherDeliversToSubscribers(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	var got []realtime.ChangeEvent
	unsub, err := feed.Subscribe(context.Background(), realtime.KindContest, "c1", func(ev realtime.ChangeEvent) {
		got = append(got, ev)
	})
	require.NoError(t, err)
	defer unsub()

	event := Event{
		ID:        uuid.New(),
		Kind:      realtime.KindContest,
		Key:       "c1",
		Payload:   json.RawMessage(`{"state":"FINISHED"}`),
		CreatedAt: time.Now(),
	}
	require.NoError(t, NewFeedPublisher(feed).Publish(context.Background(), event))

	require.Len(t, got, 1)
	assert.Equal(t, event.ID.String(), got[0].ID)
	assert.Equal(t, realtime.KindContest, got[0].Kind)
	assert.JSONEq(t, `{"state":"FINISHED"}`, string(got[0].Payload))
}

func TestInlineRelayServesFeedSubscribers(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	var got []realtime.ChangeEvent
	unsub, err := feed.Subscribe(context.Background(), realtime.KindParticipant, "p1", func(ev realtime.ChangeEvent) {
		got = append(got, ev)
	})
	require.NoError(t, err)
	defer unsub()

	event := Event{ID: uuid.New(), Kind: realtime.KindParticipant, Key: "p1", CreatedAt: time.Now()}
	store := newFakeStore(event)
	l := testListener(store, NewFeedPublisher(feed))

	require.NoError(t, l.handleNotification(context.Background(), event.ID.String()))
	require.Len(t, got, 1)
	assert.Equal(t, event.ID.String(), got[0].ID)
	assert.Equal(t, []uuid.UUID{event.ID}, store.sent)
}
