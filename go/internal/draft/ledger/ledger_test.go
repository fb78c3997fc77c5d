package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partdraft/go/internal/models"
)

func pickOf(itemID uuid.UUID, overall int) models.PickRecord {
	return models.PickRecord{
		Item:        models.Item{ID: itemID},
		OverallPick: overall,
		Method:      models.PickMethodManual,
	}
}

func TestRecord_RejectsDuplicateItem(t *testing.T) {
	l := New()
	item := uuid.New()

	require.NoError(t, l.Record(pickOf(item, 1)))
	err := l.Record(pickOf(item, 2))

	require.ErrorIs(t, err, ErrDuplicateItem)
	assert.Equal(t, 1, l.TotalPicks())
	assert.True(t, l.IsTaken(item))
}

func TestHistory_MostRecentFirst(t *testing.T) {
	l := New()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for i, id := range ids {
		require.NoError(t, l.Record(pickOf(id, i+1)))
	}

	hist := l.History()
	require.Len(t, hist, 3)
	assert.Equal(t, ids[2], hist[0].Item.ID)
	assert.Equal(t, ids[1], hist[1].Item.ID)
	assert.Equal(t, ids[0], hist[2].Item.ID)

	// mutating the copy must not leak into the ledger
	hist[0].Item.ID = uuid.Nil
	assert.Equal(t, ids[2], l.History()[0].Item.ID)

	assert.Equal(t, 3, l.History()[0].OverallPick)
	assert.Equal(t, ids, []uuid.UUID{
		l.Chronological()[0].Item.ID,
		l.Chronological()[1].Item.ID,
		l.Chronological()[2].Item.ID,
	})
}

func TestIsTaken_Unknown(t *testing.T) {
	l := New()
	assert.False(t, l.IsTaken(uuid.New()))
	assert.Empty(t, l.History())
	assert.Zero(t, l.TotalPicks())
}
