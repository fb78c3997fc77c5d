package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partdraft/go/internal/models"
)

// fakeRows serves fixed values; a nil value leaves the destination zeroed.
type fakeRows struct {
	data   [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) { return r.data[r.pos-1], nil }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, v := range row {
		if v == nil {
			continue
		}
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

type fakeQuerier struct {
	rows  *fakeRows
	err   error
	query string
	args  []any
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.query, q.args = sql, args
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func strPtr(s string) *string { return &s }

func TestCatalogStore_LoadCatalog(t *testing.T) {
	lotteryID := uuid.New()
	plain := uuid.New()
	styled := uuid.New()
	colorID := uuid.New()
	collectionID := uuid.New()

	q := &fakeQuerier{rows: &fakeRows{data: [][]any{
		{styled, uuid.New(), "Brick 2x4", strPtr("https://img/1.png"), 4.5, 3,
			uuid.NullUUID{UUID: colorID, Valid: true}, strPtr("Red"), strPtr("#ff0000"),
			uuid.NullUUID{UUID: collectionID, Valid: true}, strPtr("Classic")},
		{plain, uuid.New(), "Plate 1x1", nil, 0.5, 1,
			nil, nil, nil, nil, nil},
	}}}
	store := NewCatalogStore(q)

	items, err := store.LoadCatalog(context.Background(), lotteryID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, []any{lotteryID}, q.args)
	assert.True(t, q.rows.closed)

	assert.Equal(t, styled, items[0].ID)
	assert.Equal(t, "https://img/1.png", items[0].ImageURL)
	require.NotNil(t, items[0].Color)
	assert.Equal(t, models.Color{ID: colorID, Name: "Red", Hex: "#ff0000"}, *items[0].Color)
	require.NotNil(t, items[0].Collection)
	assert.Equal(t, "Classic", items[0].Collection.Name)

	assert.Equal(t, plain, items[1].ID)
	assert.Empty(t, items[1].ImageURL)
	assert.Nil(t, items[1].Color)
	assert.Nil(t, items[1].Collection)
}

func TestCatalogStore_LoadRoster(t *testing.T) {
	ticketID, userID, purchaseID := uuid.New(), uuid.New(), uuid.New()
	q := &fakeQuerier{rows: &fakeRows{data: [][]any{
		{ticketID, userID, purchaseID, "brickfan", strPtr("Brick Fan"), nil},
	}}}

	tickets, err := NewCatalogStore(q).LoadRoster(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, models.Ticket{
		ID:         ticketID,
		UserID:     userID,
		PurchaseID: purchaseID,
		Status:     models.TicketStatusWaiting,
		User:       models.UserInfo{ID: userID, Username: "brickfan", DisplayName: "Brick Fan"},
	}, tickets[0])
}

func TestCatalogStore_LoadPriorities(t *testing.T) {
	lotteryID, userID := uuid.New(), uuid.New()
	a, b := uuid.New(), uuid.New()
	q := &fakeQuerier{rows: &fakeRows{data: [][]any{{a, 1}, {b, 2}}}}

	prios, err := NewCatalogStore(q).LoadPriorities(context.Background(), lotteryID, userID)
	require.NoError(t, err)
	assert.Equal(t, []models.PriorityEntry{
		{UserID: userID, ItemID: a, Rank: 1},
		{UserID: userID, ItemID: b, Rank: 2},
	}, prios)
	assert.Equal(t, []any{lotteryID, userID}, q.args)
}

func TestCatalogStore_Errors(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := NewCatalogStore(&fakeQuerier{err: boom}).LoadCatalog(context.Background(), uuid.New())
	assert.ErrorIs(t, err, boom)

	_, err = NewCatalogStore(&fakeQuerier{rows: &fakeRows{err: boom}}).LoadRoster(context.Background(), uuid.New())
	assert.ErrorIs(t, err, boom)
}
