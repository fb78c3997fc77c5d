package orchestrator

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/partdraft/go/internal/draft/algorithm"
	"github.com/mcdev12/partdraft/go/internal/draft/broadcast"
	"github.com/mcdev12/partdraft/go/internal/draft/outbox"
)

// Config holds the timing rules for a room.
type Config struct {
	TickInterval        time.Duration // one countdown unit
	LobbyCountdownTicks int
	TurnTicks           int
	ShuffleDisplay      time.Duration
	AutoPickGrace       time.Duration
	Retention           time.Duration // how long a completed room stays viewable
	BroadcastWindow     time.Duration
	InboxSize           int
}

func DefaultConfig() Config {
	return Config{
		TickInterval:        time.Second,
		LobbyCountdownTicks: 10,
		TurnTicks:           15,
		ShuffleDisplay:      3 * time.Second,
		AutoPickGrace:       2 * time.Second,
		Retention:           5 * time.Minute,
		BroadcastWindow:     100 * time.Millisecond,
		InboxSize:           64,
	}
}

// Deps are the collaborators a session talks to.
type Deps struct {
	Clock     clockwork.Clock
	Transport broadcast.Transport
	Sink      outbox.Sink
	// Shuffler is only used from the session goroutine and must not be shared.
	Shuffler algorithm.Shuffler
	// OnRetire is called from the session goroutine once the retention
	// window of a completed room has elapsed.
	OnRetire func(lotteryID uuid.UUID, s *Session)
}
