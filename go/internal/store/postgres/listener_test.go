package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	notes  chan *pq.Notification
	closed chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{notes: make(chan *pq.Notification, 4), closed: make(chan struct{})}
}

func (f *fakeSource) NotificationChannel() <-chan *pq.Notification { return f.notes }
func (f *fakeSource) Ping() error                                  { return nil }
func (f *fakeSource) Close() error {
	close(f.closed)
	return nil
}

type recordingWatcher struct {
	mu      sync.Mutex
	changed []uuid.UUID
	err     error
}

func (w *recordingWatcher) RosterChanged(_ context.Context, id uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changed = append(w.changed, id)
	return w.err
}

func (w *recordingWatcher) seen() []uuid.UUID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]uuid.UUID(nil), w.changed...)
}

func TestRosterListener_DeliversNotifications(t *testing.T) {
	src := newFakeSource()
	watcher := &recordingWatcher{}
	l := newRosterListener(src, watcher, DefaultListenerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	lotteryID := uuid.New()
	src.notes <- nil // reconnect marker
	src.notes <- &pq.Notification{Channel: "lottery_roster_changed", Extra: "garbage"}
	src.notes <- &pq.Notification{Channel: "lottery_roster_changed", Extra: lotteryID.String()}

	require.Eventually(t, func() bool { return len(watcher.seen()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, lotteryID, watcher.seen()[0])

	cancel()
	require.NoError(t, <-done)
	select {
	case <-src.closed:
	default:
		t.Fatal("listener was not closed")
	}
}

func TestRosterListener_HandleNotificationErrors(t *testing.T) {
	watcher := &recordingWatcher{err: errors.New("room busy")}
	l := newRosterListener(newFakeSource(), watcher, DefaultListenerConfig())

	assert.Error(t, l.handleNotification(context.Background(), "not-a-uuid"))
	err := l.handleNotification(context.Background(), uuid.NewString())
	assert.ErrorContains(t, err, "room busy")
}
