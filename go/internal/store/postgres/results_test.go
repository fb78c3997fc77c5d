package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partdraft/go/internal/models"
)

func newMockStore(t *testing.T) (*ResultStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewResultStore(db), mock
}

func TestResultStore_InitResult(t *testing.T) {
	store, mock := newMockStore(t)
	lotteryID := uuid.New()
	startedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(initResultSQL).
		WithArgs(lotteryID, resultStatusInProgress, sqlmock.AnyArg(), startedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.InitResult(context.Background(), lotteryID, []models.Ticket{{ID: uuid.New()}}, startedAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultStore_AppendPicksInOneTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	lotteryID := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	picks := []models.PickRecord{
		{TicketID: uuid.New(), User: models.UserInfo{ID: uuid.New()}, Item: models.Item{ID: uuid.New()}, Round: 1, Pick: 1, OverallPick: 1, Method: models.PickMethodManual, PickedAt: at},
		{TicketID: uuid.New(), User: models.UserInfo{ID: uuid.New()}, Item: models.Item{ID: uuid.New()}, Round: 1, Pick: 2, OverallPick: 2, Method: models.PickMethodAFK, PickedAt: at.Add(time.Second)},
	}

	mock.ExpectBegin()
	mock.ExpectExec(appendPicksSQL).
		WithArgs(lotteryID,
			pq.Array([]int64{1, 2}), pq.Array([]int64{1, 1}), pq.Array([]int64{1, 2}),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			pq.Array([]string{"MANUAL", "AFK"}),
			pq.Array([]string{"2026-03-01T12:00:00Z", "2026-03-01T12:00:01Z"}),
		).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(countPicksSQL).WithArgs(lotteryID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.AppendPicks(context.Background(), lotteryID, picks))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultStore_AppendPicksRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	lotteryID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(appendPicksSQL).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := store.AppendPicks(context.Background(), lotteryID, []models.PickRecord{{OverallPick: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock detected")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultStore_AppendNothing(t *testing.T) {
	store, mock := newMockStore(t)
	require.NoError(t, store.AppendPicks(context.Background(), uuid.New(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultStore_FinalizeAndRead(t *testing.T) {
	store, mock := newMockStore(t)
	lotteryID := uuid.New()
	completedAt := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	summary := models.DraftSummary{
		LotteryID:   lotteryID,
		TotalPicks:  2,
		TotalRounds: 1,
		TotalValue:  7.5,
		CompletedAt: completedAt,
	}

	mock.ExpectExec(finalizeResultSQL).
		WithArgs(lotteryID, resultStatusCompleted, completedAt, 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.FinalizeResult(context.Background(), summary))

	doc, err := json.Marshal(summary)
	require.NoError(t, err)
	mock.ExpectQuery(getResultSQL).
		WithArgs(lotteryID).
		WillReturnRows(sqlmock.NewRows([]string{"status", "started_at", "completed_at", "total_picks", "summary"}).
			AddRow(resultStatusCompleted, completedAt.Add(-time.Hour), completedAt, 2, doc))

	res, err := store.GetResult(context.Background(), lotteryID)
	require.NoError(t, err)
	assert.Equal(t, resultStatusCompleted, res.Status)
	require.NotNil(t, res.CompletedAt)
	assert.True(t, completedAt.Equal(*res.CompletedAt))
	require.NotNil(t, res.Summary)
	assert.Equal(t, 7.5, res.Summary.TotalValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultStore_GetResultMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(getResultSQL).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetResult(context.Background(), uuid.New())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestResultStore_Completed(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	columns := []string{"status", "started_at", "completed_at", "total_picks", "summary"}
	startedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	finished := uuid.New()
	mock.ExpectQuery(getResultSQL).WithArgs(finished).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(resultStatusCompleted, startedAt, startedAt.Add(time.Hour), 3, nil))
	done, err := store.Completed(ctx, finished)
	require.NoError(t, err)
	assert.True(t, done)

	running := uuid.New()
	mock.ExpectQuery(getResultSQL).WithArgs(running).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(resultStatusInProgress, startedAt, nil, 1, nil))
	done, err = store.Completed(ctx, running)
	require.NoError(t, err)
	assert.False(t, done)

	fresh := uuid.New()
	mock.ExpectQuery(getResultSQL).WithArgs(fresh).WillReturnError(sql.ErrNoRows)
	done, err = store.Completed(ctx, fresh)
	require.NoError(t, err)
	assert.False(t, done)

	mock.ExpectQuery(getResultSQL).WillReturnError(errors.New("connection reset"))
	_, err = store.Completed(ctx, uuid.New())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
