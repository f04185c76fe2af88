package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bazaarhub/bazaar-backend/pkg/db/dbtest"
	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	"github.com/bazaarhub/bazaar-backend/pkg/enums"
)

func insertRows(t *testing.T, repo *Repository, conn *gorm.DB, n int) []models.OutboxEvent {
	t.Helper()
	rows := make([]models.OutboxEvent, n)
	for i := range rows {
		rows[i] = models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
		}
		require.NoError(t, repo.Insert(conn, rows[i]))
	}
	return rows
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.New(t)
	repo := NewRepository(conn)
	rows := insertRows(t, repo, conn, 2)

	require.NoError(t, repo.MarkFailedTx(conn, rows[0].ID, errors.New("transient")))
	require.NoError(t, repo.MarkPublishedTx(conn, rows[1].ID))

	pending, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rows[0].ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "transient", *pending[0].LastError)

	require.NoError(t, repo.MarkTerminalTx(conn, rows[0].ID, errors.New("gave up"), 5))
	pending, err = repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeletePublishedBeforeKeepsPendingRows(t *testing.T) {
	conn := dbtest.New(t)
	repo := NewRepository(conn)
	rows := insertRows(t, repo, conn, 3)
	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkTerminalTx(conn, rows[1].ID, errors.New("gave up"), 5))

	deleted, err := repo.DeletePublishedBefore(context.Background(), conn, time.Now().Add(time.Hour), 5)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	left, err := repo.FetchUnpublished(10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, rows[2].ID, left[0].ID)
}

func TestDeadLettersParkOncePerEvent(t *testing.T) {
	conn := dbtest.New(t)
	repo := NewRepository(conn)
	letters := NewDeadLetters(conn)
	event := insertRows(t, repo, conn, 1)[0]
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cause := errors.New(strings.Repeat("x", maxLastErrorLen+10))
	require.NoError(t, letters.ParkTx(conn, event, enums.DeadLetterMaxAttempts, cause, 5, at))
	require.NoError(t, letters.ParkTx(conn, event, enums.DeadLetterNonRetryable, errors.New("again"), 6, at))

	var count int64
	require.NoError(t, conn.Model(&models.DeadLetter{}).Where("event_id = ?", event.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	found, err := letters.ForEvent(context.Background(), event.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.DeadLetterMaxAttempts, found.Reason)
	assert.Equal(t, 5, found.Attempts)
	assert.Len(t, found.LastError, maxLastErrorLen)
	assert.JSONEq(t, `{}`, string(found.Payload))

	missing, err := letters.ForEvent(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Error(t, letters.ParkTx(nil, event, enums.DeadLetterMaxAttempts, cause, 1, at))
}
