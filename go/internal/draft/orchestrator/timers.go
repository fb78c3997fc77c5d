package orchestrator

import (
	"time"

	"github.com/jonboulle/clockwork"
)

type timerKind int

const (
	timerShuffle timerKind = iota
	timerLobbyTick
	timerTurnTick
	timerGrace
	timerRetire
	numTimerKinds
)

func (k timerKind) String() string {
	switch k {
	case timerShuffle:
		return "shuffle"
	case timerLobbyTick:
		return "lobby_tick"
	case timerTurnTick:
		return "turn_tick"
	case timerGrace:
		return "auto_pick_grace"
	case timerRetire:
		return "retire"
	default:
		return "unknown"
	}
}

// timerFired is posted to the session inbox when a timer expires. gen lets
// the session ignore fires from timers that were replaced or cancelled after
// the callback had already been scheduled.
type timerFired struct {
	kind timerKind
	gen  uint64
}

// timerSet holds at most one live timer per kind. It is only touched from the
// session goroutine.
type timerSet struct {
	clock  clockwork.Clock
	active [numTimerKinds]clockwork.Timer
	gen    [numTimerKinds]uint64
}

func newTimerSet(clock clockwork.Clock) *timerSet {
	return &timerSet{clock: clock}
}

// arm replaces any timer of the same kind.
func (ts *timerSet) arm(kind timerKind, d time.Duration, post func(timerFired)) {
	ts.cancel(kind)
	fired := timerFired{kind: kind, gen: ts.gen[kind]}
	ts.active[kind] = ts.clock.AfterFunc(d, func() { post(fired) })
}

func (ts *timerSet) cancel(kind timerKind) {
	if t := ts.active[kind]; t != nil {
		t.Stop()
		ts.active[kind] = nil
	}
	ts.gen[kind]++
}

func (ts *timerSet) cancelAll() {
	for k := timerKind(0); k < numTimerKinds; k++ {
		ts.cancel(k)
	}
}

func (ts *timerSet) armed(kind timerKind) bool {
	return ts.active[kind] != nil
}

// accept reports whether a fire belongs to the live timer of its kind and
// clears it if so.
func (ts *timerSet) accept(f timerFired) bool {
	if ts.active[f.kind] == nil || ts.gen[f.kind] != f.gen {
		return false
	}
	ts.active[f.kind] = nil
	ts.gen[f.kind]++
	return true
}
