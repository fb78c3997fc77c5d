package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL   string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string        // Channel name to LISTEN on
	PingInterval  time.Duration
	HandleTimeout time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel: "lottery_roster_changed",
		PingInterval:  90 * time.Second,
		HandleTimeout: 10 * time.Second,
	}
}

// RosterWatcher is told when a lottery's tickets change. *registry.Registry
// implements it.
type RosterWatcher interface {
	RosterChanged(ctx context.Context, lotteryID uuid.UUID) error
}

// notificationSource is the part of *pq.Listener the roster listener uses.
type notificationSource interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// RosterListener turns ticket-table notifications into roster refreshes.
type RosterListener struct {
	source  notificationSource
	watcher RosterWatcher
	cfg     ListenerConfig
}

func NewRosterListener(watcher RosterWatcher, cfg ListenerConfig) (*RosterListener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	return newRosterListener(l, watcher, cfg), nil
}

func newRosterListener(source notificationSource, watcher RosterWatcher, cfg ListenerConfig) *RosterListener {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultListenerConfig().PingInterval
	}
	return &RosterListener{source: source, watcher: watcher, cfg: cfg}
}

// Start handles notifications until ctx is done, then closes the listener.
func (l *RosterListener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Msg("roster listener started")

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	notes := l.source.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("roster listener shutting down")
			return l.source.Close()
		case note := <-notes:
			if note == nil {
				// connection was lost; pq reconnects and keeps listening
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-pingTicker.C:
			if err := l.source.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// handleNotification handles one NOTIFY. Extra is the lottery id.
func (l *RosterListener) handleNotification(ctx context.Context, extra string) error {
	lotteryID, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid lottery ID in notification: %w", err)
	}
	if l.cfg.HandleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.HandleTimeout)
		defer cancel()
	}
	if err := l.watcher.RosterChanged(ctx, lotteryID); err != nil {
		return fmt.Errorf("apply roster change for %s: %w", lotteryID, err)
	}
	log.Debug().Str("lottery_id", lotteryID.String()).Msg("roster change applied")
	return nil
}
