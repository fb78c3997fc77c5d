package algorithm

import (
	"errors"

	"github.com/google/uuid"

	"github.com/mcdev12/partdraft/go/internal/models"
)

var (
	ErrNotYourTurn     = errors.New("not your turn")
	ErrDraftNotActive  = errors.New("draft is not active")
	ErrItemUnavailable = errors.New("item is not available")
)

// Taken answers whether an item is already in the pick ledger.
type Taken interface {
	IsTaken(itemID uuid.UUID) bool
}

// Pool is the set of items that can still be drafted.
type Pool interface {
	// Available returns the item if it has not been picked.
	Available(itemID uuid.UUID) (models.Item, bool)
	// AvailableItems returns the remaining items in catalog order.
	AvailableItems() []models.Item
}

// PickCheck is the room state a proposed pick is validated against.
type PickCheck struct {
	Phase   models.Phase
	Drafter *models.Ticket
	Pool    Pool
	Ledger  Taken
}

// ValidatePick returns the item for a legal pick or the reason it is rejected.
func ValidatePick(c PickCheck, userID, itemID uuid.UUID) (models.Item, error) {
	if c.Phase != models.PhasePlayroom || c.Drafter == nil {
		return models.Item{}, ErrDraftNotActive
	}
	if c.Drafter.UserID != userID {
		return models.Item{}, ErrNotYourTurn
	}
	item, ok := c.Pool.Available(itemID)
	if !ok || c.Ledger.IsTaken(itemID) {
		return models.Item{}, ErrItemUnavailable
	}
	return item, nil
}

// SelectAutoPick chooses an item on a drafter's behalf. Among the drafter's
// still-available priority items the highest value wins; otherwise the
// highest value item left in the pool. Ties keep the first found. ok is
// false when nothing remains.
func SelectAutoPick(priorities []uuid.UUID, pool Pool, ledger Taken) (item models.Item, ok bool) {
	for _, id := range priorities {
		cand, avail := pool.Available(id)
		if !avail || ledger.IsTaken(id) {
			continue
		}
		if !ok || cand.Value > item.Value {
			item, ok = cand, true
		}
	}
	if ok {
		return item, true
	}
	for _, cand := range pool.AvailableItems() {
		if ledger.IsTaken(cand.ID) {
			continue
		}
		if !ok || cand.Value > item.Value {
			item, ok = cand, true
		}
	}
	return item, ok
}
