// Package registry tracks the live draft rooms of this process.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/mcdev12/partdraft/go/internal/draft/algorithm"
	"github.com/mcdev12/partdraft/go/internal/draft/broadcast"
	"github.com/mcdev12/partdraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/partdraft/go/internal/draft/outbox"
	"github.com/mcdev12/partdraft/go/internal/draft/room"
	"github.com/mcdev12/partdraft/go/internal/models"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrClosed       = errors.New("registry is shut down")
)

// Loader supplies room inputs. *preload.Preloader implements it.
type Loader interface {
	Load(ctx context.Context, lotteryID uuid.UUID) (room.Inputs, error)
	Cached(ctx context.Context, lotteryID uuid.UUID) (room.Inputs, bool)
	RefreshRoster(ctx context.Context, lotteryID uuid.UUID) ([]models.Ticket, map[uuid.UUID][]models.PriorityEntry, error)
	Invalidate(ctx context.Context, lotteryID uuid.UUID) error
}

// Results reports whether a lottery's draft already finished, possibly in
// an earlier process. *postgres.ResultStore implements it.
type Results interface {
	Completed(ctx context.Context, lotteryID uuid.UUID) (bool, error)
}

type Deps struct {
	Clock     clockwork.Clock
	Transport broadcast.Transport
	Sink      outbox.Sink
	// Results is optional. Without it only rooms retired by this process
	// are known to be finished.
	Results Results
	// NewShuffler is called once per room. Defaults to a clock-seeded source.
	NewShuffler func() algorithm.Shuffler
	// LoadTimeout bounds the shared first-join load.
	LoadTimeout time.Duration
}

type Registry struct {
	loader Loader
	config orchestrator.Config
	deps   Deps

	mu       sync.RWMutex
	rooms    map[uuid.UUID]*orchestrator.Session
	finished map[uuid.UUID]struct{} // retired lotteries, never reopened
	closed   bool
	group    singleflight.Group
}

func New(loader Loader, cfg orchestrator.Config, deps Deps) *Registry {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.NewShuffler == nil {
		clock := deps.Clock
		deps.NewShuffler = func() algorithm.Shuffler {
			return algorithm.NewShuffler(clock.Now().UnixNano())
		}
	}
	if deps.LoadTimeout <= 0 {
		deps.LoadTimeout = 15 * time.Second
	}
	return &Registry{
		loader: loader,
		config: cfg,
		deps:   deps,
		rooms:    make(map[uuid.UUID]*orchestrator.Session),
		finished: make(map[uuid.UUID]struct{}),
	}
}

// Get returns a live room without creating it.
func (r *Registry) Get(lotteryID uuid.UUID) (*orchestrator.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rooms[lotteryID]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Finished reports whether a lottery's room was retired after completing.
func (r *Registry) Finished(lotteryID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.finished[lotteryID]
	return ok
}

// List returns the live rooms ordered by lottery id.
func (r *Registry) List() []*orchestrator.Session {
	r.mu.RLock()
	out := make([]*orchestrator.Session, 0, len(r.rooms))
	for _, s := range r.rooms {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LotteryID(), out[j].LotteryID()
		return a.String() < b.String()
	})
	return out
}

// Ensure returns the room for a lottery, loading and creating it on first
// use. Concurrent first joins share a single load, which is not tied to any
// one caller's context. A lottery whose draft already completed is never
// reopened and reports ErrRoomClosed.
func (r *Registry) Ensure(ctx context.Context, lotteryID uuid.UUID) (*orchestrator.Session, error) {
	if s, ok := r.Get(lotteryID); ok {
		return s, nil
	}
	if r.Finished(lotteryID) {
		return nil, orchestrator.ErrRoomClosed
	}

	ch := r.group.DoChan(lotteryID.String(), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.deps.LoadTimeout)
		defer cancel()
		return r.open(loadCtx, lotteryID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			log.Warn().Err(res.Err).Str("lottery_id", lotteryID.String()).Msg("could not open room")
			return nil, res.Err
		}
		return res.Val.(*orchestrator.Session), nil
	}
}

func (r *Registry) open(ctx context.Context, lotteryID uuid.UUID) (*orchestrator.Session, error) {
	if s, ok := r.Get(lotteryID); ok {
		return s, nil
	}
	if r.Finished(lotteryID) {
		return nil, orchestrator.ErrRoomClosed
	}
	if r.deps.Results != nil {
		done, err := r.deps.Results.Completed(ctx, lotteryID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", orchestrator.ErrUnavailable, err)
		}
		if done {
			r.mu.Lock()
			r.finished[lotteryID] = struct{}{}
			r.mu.Unlock()
			return nil, orchestrator.ErrRoomClosed
		}
	}

	in, err := r.loader.Load(ctx, lotteryID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", orchestrator.ErrUnavailable, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if _, ok := r.finished[lotteryID]; ok {
		return nil, orchestrator.ErrRoomClosed
	}
	s := orchestrator.NewSession(in, r.config, orchestrator.Deps{
		Clock:     r.deps.Clock,
		Transport: r.deps.Transport,
		Sink:      r.deps.Sink,
		Shuffler:  r.deps.NewShuffler(),
		OnRetire:  r.retire,
	})
	r.rooms[lotteryID] = s
	log.Info().
		Str("lottery_id", lotteryID.String()).
		Int("rooms", len(r.rooms)).
		Msg("room created")
	return s, nil
}

// Join adds a connection to a room, creating the room if needed. A ticket
// holder the room does not know about yet triggers a roster refresh while the
// room is still in its lobby.
func (r *Registry) Join(ctx context.Context, lotteryID uuid.UUID, connID string, userID uuid.UUID) (*orchestrator.Session, room.Snapshot, error) {
	s, err := r.Ensure(ctx, lotteryID)
	if err != nil {
		return nil, room.Snapshot{}, err
	}
	snap, err := s.Join(ctx, connID, userID)
	if err != nil {
		return nil, room.Snapshot{}, err
	}
	if userID == uuid.Nil || snap.Phase != models.PhaseLobby || snap.Shuffling || holdsTicket(snap.Roster, userID) {
		return s, snap, nil
	}

	tickets, prios, err := r.loader.RefreshRoster(ctx, lotteryID)
	if err != nil {
		log.Warn().Err(err).Str("lottery_id", lotteryID.String()).Msg("roster refresh failed")
		return s, snap, nil
	}
	if !holdsTicket(tickets, userID) {
		return s, snap, nil
	}
	if err := s.ReplaceRoster(ctx, tickets, prios); err != nil {
		log.Debug().Err(err).Str("lottery_id", lotteryID.String()).Msg("roster refresh not applied")
		return s, snap, nil
	}
	snap, err = s.Snapshot(ctx)
	if err != nil {
		return nil, room.Snapshot{}, err
	}
	return s, snap, nil
}

// Start begins the draft. Room inputs that have expired from the cache are
// loaded again first; if that fails the caller is asked to retry.
func (r *Registry) Start(ctx context.Context, lotteryID uuid.UUID, force bool) error {
	s, ok := r.Get(lotteryID)
	if !ok {
		return ErrRoomNotFound
	}
	if _, fresh := r.loader.Cached(ctx, lotteryID); !fresh {
		tickets, prios, err := r.loader.RefreshRoster(ctx, lotteryID)
		if err != nil {
			return fmt.Errorf("%w: %w", orchestrator.ErrUnavailable, err)
		}
		if err := s.ReplaceRoster(ctx, tickets, prios); err != nil {
			return err
		}
	}
	return s.Start(ctx, force)
}

// RosterChanged reacts to an external roster update. Cached inputs are
// dropped, and a live room still in its lobby takes the new roster.
func (r *Registry) RosterChanged(ctx context.Context, lotteryID uuid.UUID) error {
	if err := r.loader.Invalidate(ctx, lotteryID); err != nil {
		log.Warn().Err(err).Str("lottery_id", lotteryID.String()).Msg("failed to invalidate room cache")
	}
	s, ok := r.Get(lotteryID)
	if !ok {
		return nil
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snap.Phase != models.PhaseLobby || snap.Shuffling {
		return nil
	}
	tickets, prios, err := r.loader.RefreshRoster(ctx, lotteryID)
	if err != nil {
		return fmt.Errorf("refresh roster: %w", err)
	}
	if err := s.ReplaceRoster(ctx, tickets, prios); err != nil && !errors.Is(err, room.ErrWrongPhase) && !errors.Is(err, room.ErrShuffling) {
		return err
	}
	return nil
}

// retire runs on the session goroutine once a completed room's retention
// window has passed.
func (r *Registry) retire(lotteryID uuid.UUID, s *orchestrator.Session) {
	r.mu.Lock()
	if r.rooms[lotteryID] == s {
		delete(r.rooms, lotteryID)
	}
	r.finished[lotteryID] = struct{}{}
	r.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.loader.Invalidate(ctx, lotteryID); err != nil {
			log.Warn().Err(err).Str("lottery_id", lotteryID.String()).Msg("failed to invalidate room cache")
		}
	}()
	log.Info().Str("lottery_id", lotteryID.String()).Msg("room retired")
}

// Shutdown closes every room, cancelling their timers.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	sessions := make([]*orchestrator.Session, 0, len(r.rooms))
	for id, s := range r.rooms {
		sessions = append(sessions, s)
		delete(r.rooms, id)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, s := range sessions {
			wg.Add(1)
			go func(s *orchestrator.Session) {
				defer wg.Done()
				s.Close()
			}(s)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Int("rooms", len(sessions)).Msg("registry shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func holdsTicket(roster []models.Ticket, userID uuid.UUID) bool {
	for _, t := range roster {
		if t.UserID == userID {
			return true
		}
	}
	return false
}
