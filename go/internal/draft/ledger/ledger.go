// Package ledger holds the append-only pick history of a single draft room.
package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/partdraft/go/internal/models"
)

// ErrDuplicateItem means an item was recorded twice. Validation should make this unreachable.
var ErrDuplicateItem = errors.New("item already recorded in ledger")

// Ledger is not safe for concurrent use; it is owned by one room.
type Ledger struct {
	picks []models.PickRecord
	taken map[uuid.UUID]struct{}
}

func New() *Ledger {
	return &Ledger{taken: make(map[uuid.UUID]struct{})}
}

// Record appends a pick. It rejects an item id that is already present.
func (l *Ledger) Record(pick models.PickRecord) error {
	if _, ok := l.taken[pick.Item.ID]; ok {
		return fmt.Errorf("record item %s: %w", pick.Item.ID, ErrDuplicateItem)
	}
	l.taken[pick.Item.ID] = struct{}{}
	l.picks = append(l.picks, pick)
	return nil
}

func (l *Ledger) IsTaken(itemID uuid.UUID) bool {
	_, ok := l.taken[itemID]
	return ok
}

func (l *Ledger) TotalPicks() int {
	return len(l.picks)
}

// History returns a copy of the picks, most recent first.
func (l *Ledger) History() []models.PickRecord {
	out := make([]models.PickRecord, len(l.picks))
	for i, p := range l.picks {
		out[len(l.picks)-1-i] = p
	}
	return out
}

// Chronological returns a copy of the picks in the order they were made.
func (l *Ledger) Chronological() []models.PickRecord {
	out := make([]models.PickRecord, len(l.picks))
	copy(out, l.picks)
	return out
}
