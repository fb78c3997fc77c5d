package preload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/partdraft/go/internal/draft/room"
	"github.com/mcdev12/partdraft/go/internal/models"
)

// ErrNotLoaded is returned when room inputs are missing from the cache.
var ErrNotLoaded = errors.New("room data not loaded yet")

// CatalogStore is the external source of catalog, roster and priority data.
type CatalogStore interface {
	LoadCatalog(ctx context.Context, lotteryID uuid.UUID) ([]models.Item, error)
	LoadRoster(ctx context.Context, lotteryID uuid.UUID) ([]models.Ticket, error)
	LoadPriorities(ctx context.Context, lotteryID, userID uuid.UUID) ([]models.PriorityEntry, error)
}

// Caches groups the three independently expiring caches.
type Caches struct {
	Items      Cache[[]models.Item]
	Roster     Cache[[]models.Ticket]
	Priorities Cache[[]models.PriorityEntry]
}

// NewMemoryCaches builds in-process caches sharing one ttl.
func NewMemoryCaches(clock clockwork.Clock, ttl time.Duration) Caches {
	return Caches{
		Items:      NewTTLCache[[]models.Item](clock, ttl),
		Roster:     NewTTLCache[[]models.Ticket](clock, ttl),
		Priorities: NewTTLCache[[]models.PriorityEntry](clock, ttl),
	}
}

type Config struct {
	LoadTimeout   time.Duration
	MaxParallel   int
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		LoadTimeout:   10 * time.Second,
		MaxParallel:   8,
		SweepInterval: time.Minute,
	}
}

type Preloader struct {
	store  CatalogStore
	caches Caches
	clock  clockwork.Clock
	config Config
}

func NewPreloader(store CatalogStore, caches Caches, clock clockwork.Clock, cfg Config) *Preloader {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	return &Preloader{store: store, caches: caches, clock: clock, config: cfg}
}

func itemsKey(lotteryID uuid.UUID) string  { return "lottery:" + lotteryID.String() + ":items" }
func rosterKey(lotteryID uuid.UUID) string { return "lottery:" + lotteryID.String() + ":roster" }
func priorityKey(lotteryID, userID uuid.UUID) string {
	return "lottery:" + lotteryID.String() + ":priority:" + userID.String()
}
func lotteryPrefix(lotteryID uuid.UUID) string { return "lottery:" + lotteryID.String() + ":" }

// Load returns everything a room needs, reading through the cache.
func (p *Preloader) Load(ctx context.Context, lotteryID uuid.UUID) (room.Inputs, error) {
	if p.config.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.LoadTimeout)
		defer cancel()
	}

	in := room.Inputs{LotteryID: lotteryID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := readThrough(gctx, p.caches.Items, itemsKey(lotteryID), func(ctx context.Context) ([]models.Item, error) {
			return p.store.LoadCatalog(ctx, lotteryID)
		})
		in.Items = items
		return err
	})
	g.Go(func() error {
		roster, err := readThrough(gctx, p.caches.Roster, rosterKey(lotteryID), func(ctx context.Context) ([]models.Ticket, error) {
			return p.store.LoadRoster(ctx, lotteryID)
		})
		in.Roster = roster
		return err
	})
	if err := g.Wait(); err != nil {
		return room.Inputs{}, fmt.Errorf("preload lottery %s: %w", lotteryID, err)
	}

	prios, err := p.loadPriorities(ctx, lotteryID, in.Roster)
	if err != nil {
		return room.Inputs{}, fmt.Errorf("preload lottery %s: %w", lotteryID, err)
	}
	in.Priorities = prios

	log.Info().
		Str("lottery_id", lotteryID.String()).
		Int("items", len(in.Items)).
		Int("tickets", len(in.Roster)).
		Int("users", len(prios)).
		Msg("room inputs preloaded")
	return in, nil
}

// Cached returns room inputs only if every piece is still cached. A miss
// means the data has expired or was never loaded.
func (p *Preloader) Cached(ctx context.Context, lotteryID uuid.UUID) (room.Inputs, bool) {
	items, ok, err := p.caches.Items.Get(ctx, itemsKey(lotteryID))
	if err != nil || !ok {
		return room.Inputs{}, false
	}
	roster, ok, err := p.caches.Roster.Get(ctx, rosterKey(lotteryID))
	if err != nil || !ok {
		return room.Inputs{}, false
	}
	in := room.Inputs{
		LotteryID:  lotteryID,
		Items:      items,
		Roster:     roster,
		Priorities: make(map[uuid.UUID][]models.PriorityEntry),
	}
	for _, userID := range uniqueUsers(roster) {
		prios, ok, err := p.caches.Priorities.Get(ctx, priorityKey(lotteryID, userID))
		if err != nil || !ok {
			return room.Inputs{}, false
		}
		in.Priorities[userID] = prios
	}
	return in, true
}

// RefreshRoster drops the cached roster, fetches it again and loads
// priorities for any new ticket holders.
func (p *Preloader) RefreshRoster(ctx context.Context, lotteryID uuid.UUID) ([]models.Ticket, map[uuid.UUID][]models.PriorityEntry, error) {
	if p.config.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.LoadTimeout)
		defer cancel()
	}

	roster, err := p.store.LoadRoster(ctx, lotteryID)
	if err != nil {
		return nil, nil, fmt.Errorf("refresh roster %s: %w", lotteryID, err)
	}
	if err := p.caches.Roster.Set(ctx, rosterKey(lotteryID), roster); err != nil {
		log.Warn().Err(err).Str("lottery_id", lotteryID.String()).Msg("failed to cache roster")
	}
	prios, err := p.loadPriorities(ctx, lotteryID, roster)
	if err != nil {
		return nil, nil, fmt.Errorf("refresh roster %s: %w", lotteryID, err)
	}
	return roster, prios, nil
}

// Invalidate removes every cached key for a lottery.
func (p *Preloader) Invalidate(ctx context.Context, lotteryID uuid.UUID) error {
	prefix := lotteryPrefix(lotteryID)
	var errs []error
	if _, err := p.caches.Items.DeletePrefix(ctx, prefix); err != nil {
		errs = append(errs, err)
	}
	if _, err := p.caches.Roster.DeletePrefix(ctx, prefix); err != nil {
		errs = append(errs, err)
	}
	if _, err := p.caches.Priorities.DeletePrefix(ctx, prefix); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Sweep enforces expiry across all caches.
func (p *Preloader) Sweep(ctx context.Context) int {
	total := 0
	for _, sweep := range []func(context.Context) (int, error){
		p.caches.Items.Sweep,
		p.caches.Roster.Sweep,
		p.caches.Priorities.Sweep,
	} {
		n, err := sweep(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("cache sweep failed")
			continue
		}
		total += n
	}
	return total
}

// RunSweeper sweeps on every interval until ctx is done.
func (p *Preloader) RunSweeper(ctx context.Context) {
	if p.config.SweepInterval <= 0 {
		return
	}
	ticker := p.clock.NewTicker(p.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := p.Sweep(ctx); n > 0 {
				log.Debug().Int("expired", n).Msg("swept preload cache")
			}
		}
	}
}

func (p *Preloader) loadPriorities(ctx context.Context, lotteryID uuid.UUID, roster []models.Ticket) (map[uuid.UUID][]models.PriorityEntry, error) {
	users := uniqueUsers(roster)
	out := make(map[uuid.UUID][]models.PriorityEntry, len(users))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.MaxParallel)
	for _, userID := range users {
		userID := userID
		g.Go(func() error {
			prios, err := readThrough(gctx, p.caches.Priorities, priorityKey(lotteryID, userID), func(ctx context.Context) ([]models.PriorityEntry, error) {
				return p.store.LoadPriorities(ctx, lotteryID, userID)
			})
			if err != nil {
				return err
			}
			mu.Lock()
			out[userID] = prios
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func readThrough[V any](ctx context.Context, c Cache[V], key string, load func(context.Context) (V, error)) (V, error) {
	v, ok, err := c.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed, loading from store")
	}
	if ok {
		return v, nil
	}
	v, err = load(ctx)
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, key, v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return v, nil
}

func uniqueUsers(roster []models.Ticket) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(roster))
	var users []uuid.UUID
	for _, t := range roster {
		if !seen[t.UserID] {
			seen[t.UserID] = true
			users = append(users, t.UserID)
		}
	}
	return users
}
