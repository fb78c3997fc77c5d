// Package broadcast bounds the outbound message rate of a room.
package broadcast

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partdraft/go/internal/draft/events"
)

// Transport delivers an event to everyone joined to a lottery. Implementations
// must not block.
type Transport interface {
	Broadcast(lotteryID uuid.UUID, event *events.Event)
}

// Stats counts what a throttler has emitted.
type Stats struct {
	Sent      int64 `json:"sent"`
	Coalesced int64 `json:"coalesced"` // events replaced before they were flushed
}

// Throttler has two emission modes. Immediate sends straight away. Coalesce
// keeps only the latest event of each type and flushes once per window.
type Throttler struct {
	lotteryID uuid.UUID
	transport Transport
	clock     clockwork.Clock
	window    time.Duration

	mu      sync.Mutex
	pending map[events.EventType]*events.Event
	order   []events.EventType
	timer   clockwork.Timer
	closed  bool
	stats   Stats
}

// NewThrottler creates a throttler for one room. A window of zero flushes
// every coalesced event as soon as it arrives.
func NewThrottler(lotteryID uuid.UUID, transport Transport, clock clockwork.Clock, window time.Duration) *Throttler {
	return &Throttler{
		lotteryID: lotteryID,
		transport: transport,
		clock:     clock,
		window:    window,
		pending:   make(map[events.EventType]*events.Event),
	}
}

// Immediate sends an event without batching. The coalesced batch keeps its
// window; only a pending event of the same type is dropped, since the
// immediate one supersedes it.
func (t *Throttler) Immediate(event *events.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if _, ok := t.pending[event.Type]; ok {
		delete(t.pending, event.Type)
		t.order = slices.DeleteFunc(t.order, func(typ events.EventType) bool { return typ == event.Type })
		t.stats.Coalesced++
	}
	t.send(event)
}

// Coalesce queues an event, replacing any pending event of the same type.
func (t *Throttler) Coalesce(event *events.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if _, ok := t.pending[event.Type]; ok {
		t.stats.Coalesced++
	} else {
		t.order = append(t.order, event.Type)
	}
	t.pending[event.Type] = event

	if t.window <= 0 {
		t.flushLocked()
		return
	}
	if t.timer == nil {
		t.timer = t.clock.AfterFunc(t.window, t.Flush)
	}
}

// Flush sends every pending coalesced event in first-arrival order.
func (t *Throttler) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flushLocked()
}

func (t *Throttler) flushLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if len(t.order) == 0 {
		return
	}
	for _, typ := range t.order {
		t.send(t.pending[typ])
	}
	t.pending = make(map[events.EventType]*events.Event)
	t.order = t.order[:0]
}

func (t *Throttler) send(event *events.Event) {
	t.stats.Sent++
	t.transport.Broadcast(t.lotteryID, event)
}

// Close flushes what is pending and stops accepting events.
func (t *Throttler) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.flushLocked()
	t.closed = true
	log.Debug().
		Str("lottery_id", t.lotteryID.String()).
		Int64("sent", t.stats.Sent).
		Int64("coalesced", t.stats.Coalesced).
		Msg("broadcast throttler closed")
}

func (t *Throttler) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
