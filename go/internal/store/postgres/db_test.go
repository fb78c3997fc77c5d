package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecer struct {
	sql []string
	err error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	return pgconn.CommandTag{}, f.err
}

func TestSchema_CreatesTablesAndTrigger(t *testing.T) {
	for _, table := range []string{"lottery_items", "lottery_tickets", "lottery_priorities", "draft_results", "draft_result_picks"} {
		assert.Contains(t, Schema, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, Schema, "pg_notify('"+DefaultListenerConfig().NotifyChannel+"'")
}

func TestApplySchema(t *testing.T) {
	db := &fakeExecer{}
	require.NoError(t, ApplySchema(context.Background(), db))
	require.Len(t, db.sql, 1)
	assert.Equal(t, Schema, db.sql[0])

	db = &fakeExecer{err: errors.New("permission denied")}
	err := ApplySchema(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}
