package room

import (
	"sort"

	"github.com/google/uuid"

	"github.com/mcdev12/partdraft/go/internal/models"
)

// Index tracks the items still available in a room and each user's ranked
// preferences. It implements algorithm.Pool.
type Index struct {
	catalog    []models.Item
	available  map[uuid.UUID]models.Item
	priorities map[uuid.UUID][]uuid.UUID
}

// NewIndex builds an index from a catalog and the raw priority entries per user.
func NewIndex(catalog []models.Item, priorities map[uuid.UUID][]models.PriorityEntry) *Index {
	idx := &Index{
		catalog:    make([]models.Item, len(catalog)),
		available:  make(map[uuid.UUID]models.Item, len(catalog)),
		priorities: make(map[uuid.UUID][]uuid.UUID, len(priorities)),
	}
	copy(idx.catalog, catalog)
	for _, it := range catalog {
		idx.available[it.ID] = it
	}
	for userID, entries := range priorities {
		idx.priorities[userID] = RankOrder(entries)
	}
	return idx
}

// RankOrder sorts priority entries by rank and returns the item ids.
func RankOrder(entries []models.PriorityEntry) []uuid.UUID {
	sorted := make([]models.PriorityEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	ids := make([]uuid.UUID, len(sorted))
	for i, e := range sorted {
		ids[i] = e.ItemID
	}
	return ids
}

func (x *Index) Available(itemID uuid.UUID) (models.Item, bool) {
	it, ok := x.available[itemID]
	return it, ok
}

func (x *Index) AvailableItems() []models.Item {
	out := make([]models.Item, 0, len(x.available))
	for _, it := range x.catalog {
		if _, ok := x.available[it.ID]; ok {
			out = append(out, it)
		}
	}
	return out
}

func (x *Index) Priorities(userID uuid.UUID) []uuid.UUID {
	return x.priorities[userID]
}

func (x *Index) remove(itemID uuid.UUID) bool {
	if _, ok := x.available[itemID]; !ok {
		return false
	}
	delete(x.available, itemID)
	return true
}

func (x *Index) Remaining() int   { return len(x.available) }
func (x *Index) CatalogSize() int { return len(x.catalog) }

// Catalog returns the full item snapshot loaded for the room.
func (x *Index) Catalog() []models.Item {
	out := make([]models.Item, len(x.catalog))
	copy(out, x.catalog)
	return out
}
