package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/knockouthq/knockout/go/internal/apperrors"
	"github.com/knockouthq/knockout/go/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestInsertWritesRowInTransaction(t *testing.T) {
	repo, mock := newMock(t)
	payload, _ := json.Marshal(map[string]string{"state": "FINISHED"})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO contest_outbox").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SELECT pg_notify").
		WithArgs(NotifyChannel, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := repo.db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	id, err := repo.Insert(context.Background(), tx, realtime.KindContest, uuid.NewString(), payload)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchByIDReturnsUnsentRow(t *testing.T) {
	repo, mock := newMock(t)
	id := uuid.New()
	key := uuid.NewString()
	created := time.Now().UTC()
	payload := []byte(`{"round":2}`)

	mock.ExpectQuery("SELECT id, kind, key, payload, created_at").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "key", "payload", "created_at"}).
			AddRow(id, "question", key, payload, created))

	event, err := repo.FetchByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, event.ID)
	assert.Equal(t, realtime.KindQuestion, event.Kind)
	assert.Equal(t, key, event.Key)
	assert.JSONEq(t, `{"round":2}`, string(event.Payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchByIDMissingRow(t *testing.T) {
	repo, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT id, kind, key, payload, created_at").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "key", "payload", "created_at"}))

	_, err := repo.FetchByID(context.Background(), id)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "not found or already sent")
}

func TestFetchUnsentScansBatch(t *testing.T) {
	repo, mock := newMock(t)
	first := uuid.New()
	second := uuid.New()
	created := time.Now().UTC()

	mock.ExpectQuery("SELECT id, kind, key, payload, created_at").
		WithArgs(int32(50)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "key", "payload", "created_at"}).
			AddRow(first, "contest", "c1", []byte(`{}`), created).
			AddRow(second, "answer", "p1", nil, created))

	events, err := repo.FetchUnsent(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first, events[0].ID)
	assert.Equal(t, realtime.KindContest, events[0].Kind)
	assert.Equal(t, realtime.KindAnswer, events[1].Kind)
	assert.Nil(t, events[1].Payload, "null payload scans as nil")
}

func TestMarkSent(t *testing.T) {
	repo, mock := newMock(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE contest_outbox SET sent_at").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkSent(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventChangeEventEnvelope(t *testing.T) {
	id := uuid.New()
	created := time.Now().UTC()
	event := Event{
		ID:        id,
		Kind:      realtime.KindParticipant,
		Key:       "participant-key",
		Payload:   json.RawMessage(`{"elimination_round":3}`),
		CreatedAt: created,
	}

	envelope := event.ChangeEvent()
	assert.Equal(t, id.String(), envelope.ID)
	assert.Equal(t, realtime.KindParticipant, envelope.Kind)
	assert.Equal(t, "participant-key", envelope.Key)
	assert.Equal(t, created, envelope.At)
	assert.JSONEq(t, `{"elimination_round":3}`, string(envelope.Payload))
}
