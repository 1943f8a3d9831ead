package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/knockouthq/knockout/go/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterCommitsRowAndNotification(t *testing.T) {
	repo, mock := newMock(t)
	emitter := NewEmitter(repo.db, repo)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO contest_outbox").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SELECT pg_notify").
		WithArgs(NotifyChannel, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := emitter.Emit(context.Background(), realtime.KindContest, "c1", map[string]string{"state": "FINISHED"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmitterRollsBackOnInsertFailure(t *testing.T) {
	repo, mock := newMock(t)
	emitter := NewEmitter(repo.db, repo)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO contest_outbox").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := emitter.Emit(context.Background(), realtime.KindQuestion, "c1", map[string]int{"round": 2})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmitterRejectsUnmarshalablePayload(t *testing.T) {
	repo, mock := newMock(t)
	emitter := NewEmitter(repo.db, repo)

	err := emitter.Emit(context.Background(), realtime.KindContest, "c1", make(chan int))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "nothing touches the database when marshalling fails")
}
