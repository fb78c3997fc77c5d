package preload

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partdraft/go/internal/models"
)

type fakeCatalog struct {
	mu         sync.Mutex
	items      []models.Item
	roster     []models.Ticket
	priorities map[uuid.UUID][]models.PriorityEntry
	fail       error
	loads      map[string]int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{priorities: map[uuid.UUID][]models.PriorityEntry{}, loads: map[string]int{}}
}

func (f *fakeCatalog) count(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads[kind]++
}

func (f *fakeCatalog) loadsOf(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads[kind]
}

func (f *fakeCatalog) LoadCatalog(context.Context, uuid.UUID) ([]models.Item, error) {
	f.count("items")
	return f.items, f.fail
}

func (f *fakeCatalog) LoadRoster(context.Context, uuid.UUID) ([]models.Ticket, error) {
	f.count("roster")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roster, f.fail
}

func (f *fakeCatalog) LoadPriorities(_ context.Context, _, userID uuid.UUID) ([]models.PriorityEntry, error) {
	f.count("priorities")
	return f.priorities[userID], f.fail
}

func seeded() *fakeCatalog {
	f := newFakeCatalog()
	u1, u2 := uuid.New(), uuid.New()
	f.items = []models.Item{{ID: uuid.New(), Value: 3}, {ID: uuid.New(), Value: 4}}
	f.roster = []models.Ticket{
		{ID: uuid.New(), UserID: u1},
		{ID: uuid.New(), UserID: u1},
		{ID: uuid.New(), UserID: u2},
	}
	f.priorities[u1] = []models.PriorityEntry{{UserID: u1, ItemID: f.items[1].ID, Rank: 1}}
	return f
}

func TestTTLCache_Expiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewTTLCache[int](clock, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1))
	v, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	clock.Advance(30 * time.Second)
	_, ok, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry removed on read")
}

func TestTTLCache_SweepAndPrefix(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewTTLCache[string](clock, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "lottery:1:items", "x"))
	require.NoError(t, c.Set(ctx, "lottery:1:roster", "y"))
	clock.Advance(30 * time.Second)
	require.NoError(t, c.Set(ctx, "lottery:2:items", "z"))

	n, err := c.DeletePrefix(ctx, "lottery:1:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, c.Set(ctx, "lottery:3:items", "w"))
	clock.Advance(45 * time.Second)
	n, err = c.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, c.Len())
}

func TestPreloader_LoadUsesCache(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := seeded()
	p := NewPreloader(store, NewMemoryCaches(clock, 30*time.Second), clock, DefaultConfig())
	lottery := uuid.New()
	ctx := context.Background()

	in, err := p.Load(ctx, lottery)
	require.NoError(t, err)
	assert.Equal(t, lottery, in.LotteryID)
	assert.Len(t, in.Items, 2)
	assert.Len(t, in.Roster, 3)
	assert.Len(t, in.Priorities, 2, "one entry per unique user")
	assert.Equal(t, 2, store.loadsOf("priorities"))

	_, err = p.Load(ctx, lottery)
	require.NoError(t, err)
	assert.Equal(t, 1, store.loadsOf("items"))
	assert.Equal(t, 1, store.loadsOf("roster"))

	cached, ok := p.Cached(ctx, lottery)
	require.True(t, ok)
	assert.Len(t, cached.Roster, 3)

	clock.Advance(31 * time.Second)
	_, ok = p.Cached(ctx, lottery)
	assert.False(t, ok, "expired data reads as not loaded")

	_, err = p.Load(ctx, lottery)
	require.NoError(t, err)
	assert.Equal(t, 2, store.loadsOf("items"))
}

func TestPreloader_LoadError(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := seeded()
	store.fail = errors.New("db down")
	p := NewPreloader(store, NewMemoryCaches(clock, time.Minute), clock, DefaultConfig())

	_, err := p.Load(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.fail)
}

func TestPreloader_RefreshRosterAndInvalidate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := seeded()
	p := NewPreloader(store, NewMemoryCaches(clock, time.Minute), clock, DefaultConfig())
	lottery := uuid.New()
	ctx := context.Background()

	_, err := p.Load(ctx, lottery)
	require.NoError(t, err)

	newcomer := uuid.New()
	store.mu.Lock()
	store.roster = append(store.roster, models.Ticket{ID: uuid.New(), UserID: newcomer})
	store.mu.Unlock()

	roster, prios, err := p.RefreshRoster(ctx, lottery)
	require.NoError(t, err)
	assert.Len(t, roster, 4)
	assert.Contains(t, prios, newcomer)

	cached, ok := p.Cached(ctx, lottery)
	require.True(t, ok)
	assert.Len(t, cached.Roster, 4)

	require.NoError(t, p.Invalidate(ctx, lottery))
	_, ok = p.Cached(ctx, lottery)
	assert.False(t, ok)
}

func TestPreloader_RunSweeper(t *testing.T) {
	clock := clockwork.NewFakeClock()
	caches := NewMemoryCaches(clock, time.Second)
	p := NewPreloader(seeded(), caches, clock, Config{MaxParallel: 2, SweepInterval: 10 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := p.Load(ctx, uuid.New())
	require.NoError(t, err)

	go p.RunSweeper(ctx)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(10 * time.Second)

	items := caches.Items.(*TTLCache[[]models.Item])
	require.Eventually(t, func() bool { return items.Len() == 0 }, time.Second, 5*time.Millisecond)
}
