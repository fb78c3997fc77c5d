// Package orchestrator runs one actor goroutine per draft room. Participant
// actions and timer expirations share a single inbox, so every mutation of a
// room happens in arrival order on that goroutine.
package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partdraft/go/internal/draft/algorithm"
	"github.com/mcdev12/partdraft/go/internal/draft/broadcast"
	"github.com/mcdev12/partdraft/go/internal/draft/events"
	"github.com/mcdev12/partdraft/go/internal/draft/outbox"
	"github.com/mcdev12/partdraft/go/internal/draft/room"
	"github.com/mcdev12/partdraft/go/internal/models"
)

type joinMsg struct {
	connID string
	userID uuid.UUID
}

type leaveMsg struct{ connID string }

type readyMsg struct {
	userID uuid.UUID
	ready  bool
}

type startMsg struct{ force bool }

type pickMsg struct {
	userID uuid.UUID
	itemID uuid.UUID
}

type autoPickMsg struct{ userID uuid.UUID }

type preferenceMsg struct {
	userID  uuid.UUID
	enabled bool
	scope   models.AutoPickScope
}

type rosterMsg struct {
	tickets    []models.Ticket
	priorities map[uuid.UUID][]models.PriorityEntry
}

type snapshotMsg struct{}

type discardTransport struct{}

func (discardTransport) Broadcast(uuid.UUID, *events.Event) {}

type reply struct {
	err      error
	snapshot room.Snapshot
	pick     models.PickRecord
}

type envelope struct {
	msg   any
	reply chan reply // nil for timer fires
}

func (e envelope) respond(r reply) {
	if e.reply != nil {
		e.reply <- r
	}
}

// Session owns a single room.
type Session struct {
	id     uuid.UUID
	config Config
	clock  clockwork.Clock
	sink   outbox.Sink

	shuffler  algorithm.Shuffler
	onRetire  func(uuid.UUID, *Session)
	room      *room.Room
	throttler *broadcast.Throttler
	timers    *timerSet

	inbox     chan envelope
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	announced models.Phase
	finished  bool
	retired   bool
}

// NewSession builds a room from preloaded inputs, opens its lobby and starts
// the session goroutine.
func NewSession(in room.Inputs, cfg Config, deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Transport == nil {
		deps.Transport = discardTransport{}
	}
	if deps.Sink == nil {
		deps.Sink = outbox.NopSink{}
	}
	if deps.Shuffler == nil {
		deps.Shuffler = algorithm.NewShuffler(deps.Clock.Now().UnixNano())
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultConfig().InboxSize
	}

	s := &Session{
		id:        in.LotteryID,
		config:    cfg,
		clock:     deps.Clock,
		sink:      deps.Sink,
		shuffler:  deps.Shuffler,
		onRetire:  deps.OnRetire,
		room:      room.New(in, deps.Clock.Now()),
		throttler: broadcast.NewThrottler(in.LotteryID, deps.Transport, deps.Clock, cfg.BroadcastWindow),
		timers:    newTimerSet(deps.Clock),
		inbox:     make(chan envelope, cfg.InboxSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	// A freshly built room is always in the welcome phase.
	_ = s.room.Open()
	s.announced = s.room.Phase()

	log.Info().
		Str("lottery_id", s.id.String()).
		Int("items", s.room.Index().CatalogSize()).
		Int("tickets", len(s.room.Roster())).
		Msg("draft room opened")

	go s.loop()
	return s
}

func (s *Session) LotteryID() uuid.UUID { return s.id }

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) BroadcastStats() broadcast.Stats { return s.throttler.Stats() }

// Close stops the session and waits for it to release its timers. It must
// not be called from the session goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Session) Join(ctx context.Context, connID string, userID uuid.UUID) (room.Snapshot, error) {
	r, err := s.call(ctx, joinMsg{connID: connID, userID: userID})
	return r.snapshot, err
}

func (s *Session) Leave(ctx context.Context, connID string) error {
	_, err := s.call(ctx, leaveMsg{connID: connID})
	return err
}

func (s *Session) SetReady(ctx context.Context, userID uuid.UUID, ready bool) error {
	_, err := s.call(ctx, readyMsg{userID: userID, ready: ready})
	return err
}

// Start shuffles the roster and begins the lobby countdown. force skips the
// readiness check.
func (s *Session) Start(ctx context.Context, force bool) error {
	_, err := s.call(ctx, startMsg{force: force})
	return err
}

// Pick submits a manual pick. The returned record is the committed pick.
func (s *Session) Pick(ctx context.Context, userID, itemID uuid.UUID) (models.PickRecord, error) {
	r, err := s.call(ctx, pickMsg{userID: userID, itemID: itemID})
	return r.pick, err
}

// RequestAutoPick lets the drafter on the clock have the engine choose for them.
func (s *Session) RequestAutoPick(ctx context.Context, userID uuid.UUID) (models.PickRecord, error) {
	r, err := s.call(ctx, autoPickMsg{userID: userID})
	return r.pick, err
}

func (s *Session) SetAutoPick(ctx context.Context, userID uuid.UUID, enabled bool, scope models.AutoPickScope) error {
	_, err := s.call(ctx, preferenceMsg{userID: userID, enabled: enabled, scope: scope})
	return err
}

// ReplaceRoster swaps in a refreshed roster while the room is in its lobby.
func (s *Session) ReplaceRoster(ctx context.Context, tickets []models.Ticket, priorities map[uuid.UUID][]models.PriorityEntry) error {
	_, err := s.call(ctx, rosterMsg{tickets: tickets, priorities: priorities})
	return err
}

func (s *Session) Snapshot(ctx context.Context) (room.Snapshot, error) {
	r, err := s.call(ctx, snapshotMsg{})
	return r.snapshot, err
}

func (s *Session) call(ctx context.Context, msg any) (reply, error) {
	env := envelope{msg: msg, reply: make(chan reply, 1)}
	select {
	case s.inbox <- env:
	case <-s.done:
		return reply{}, ErrRoomClosed
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
	select {
	case r := <-env.reply:
		return r, r.err
	case <-s.done:
		return reply{}, ErrRoomClosed
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

// post delivers a timer fire. It runs on the clock's goroutine.
func (s *Session) post(f timerFired) {
	select {
	case s.inbox <- envelope{msg: f}:
	case <-s.done:
	}
}

func (s *Session) loop() {
	defer s.shutdown()
	for {
		select {
		case <-s.quit:
			return
		case env := <-s.inbox:
			s.dispatch(env)
			if s.retired {
				return
			}
		}
	}
}

func (s *Session) dispatch(env envelope) {
	switch m := env.msg.(type) {
	case joinMsg:
		s.handleJoin(env, m)
	case leaveMsg:
		s.handleLeave(env, m)
	case readyMsg:
		s.handleReady(env, m)
	case startMsg:
		s.handleStart(env, m)
	case pickMsg:
		s.handlePick(env, m)
	case autoPickMsg:
		s.handleAutoPickRequest(env, m)
	case preferenceMsg:
		s.handlePreference(env, m)
	case rosterMsg:
		s.handleRoster(env, m)
	case snapshotMsg:
		env.respond(reply{snapshot: s.room.Snapshot()})
	case timerFired:
		s.handleTimer(m)
	default:
		log.Error().Str("lottery_id", s.id.String()).Msgf("unknown session message %T", m)
	}
}

func (s *Session) shutdown() {
	s.timers.cancelAll()
	s.throttler.Close()
	close(s.done)
	log.Info().
		Str("lottery_id", s.id.String()).
		Str("phase", string(s.room.Phase())).
		Msg("draft room closed")
}

func (s *Session) immediate(typ events.EventType, payload any) {
	ev, err := events.New(s.id, typ, s.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("lottery_id", s.id.String()).Msg("failed to build event")
		return
	}
	s.throttler.Immediate(ev)
}

func (s *Session) coalesce(typ events.EventType, payload any) {
	ev, err := events.New(s.id, typ, s.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("lottery_id", s.id.String()).Msg("failed to build event")
		return
	}
	s.throttler.Coalesce(ev)
}

func (s *Session) announcePhase() {
	prev := s.announced
	if s.room.Phase() == prev {
		return
	}
	s.announced = s.room.Phase()
	s.immediate(events.EventTypePhaseChanged, events.PhaseChangedPayload{
		Phase:     s.announced,
		Previous:  prev,
		ChangedAt: s.clock.Now(),
	})
	log.Info().
		Str("lottery_id", s.id.String()).
		Str("phase", string(s.announced)).
		Str("previous", string(prev)).
		Msg("draft phase changed")
}
