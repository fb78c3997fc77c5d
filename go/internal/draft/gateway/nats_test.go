package gateway

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partdraft/go/internal/draft/events"
)

type captureTransport struct {
	mu     sync.Mutex
	events []*events.Event
}

func (c *captureTransport) Broadcast(_ uuid.UUID, e *events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureTransport) all() []*events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*events.Event(nil), c.events...)
}

type fakePublisher struct {
	msgs []*nats.Msg
	opts int
	err  error
}

func (f *fakePublisher) PublishMsgAsync(msg *nats.Msg, opts ...jetstream.PublishOpt) (jetstream.PubAckFuture, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, msg)
	f.opts += len(opts)
	return nil, nil
}

// fakeMsg overrides the accessors the relay reads.
type fakeMsg struct {
	jetstream.Msg
	subject string
	data    []byte
	headers nats.Header
}

func (m fakeMsg) Subject() string      { return m.subject }
func (m fakeMsg) Data() []byte         { return m.data }
func (m fakeMsg) Headers() nats.Header { return m.headers }

func testEvent(t *testing.T, lotteryID uuid.UUID) *events.Event {
	t.Helper()
	ev, err := events.New(lotteryID, events.EventTypeTurnCountdownTick, time.Now(), map[string]int{"remaining": 3})
	require.NoError(t, err)
	return ev
}

func TestNATSTransport_PublishesAndDeliversLocally(t *testing.T) {
	local := &captureTransport{}
	pub := &fakePublisher{}
	tr := NewNATSTransport(local, pub, "draft.rooms", "node-a")

	lotteryID := uuid.New()
	ev := testEvent(t, lotteryID)
	tr.Broadcast(lotteryID, ev)

	require.Len(t, local.all(), 1)
	assert.Same(t, ev, local.all()[0])

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, "draft.rooms."+lotteryID.String()+".TurnCountdownTick", msg.Subject)
	assert.Equal(t, "node-a", msg.Header.Get(headerOrigin))
	assert.Equal(t, "TurnCountdownTick", msg.Header.Get(headerEventType))
	assert.Equal(t, lotteryID.String(), msg.Header.Get(headerLotteryID))
	assert.Equal(t, 1, pub.opts)

	var decoded events.Event
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
}

func TestNATSTransport_PublishFailureStillDeliversLocally(t *testing.T) {
	local := &captureTransport{}
	tr := NewNATSTransport(local, &fakePublisher{err: errors.New("nats down")}, "draft.rooms", "node-a")

	lotteryID := uuid.New()
	tr.Broadcast(lotteryID, testEvent(t, lotteryID))
	assert.Len(t, local.all(), 1)
}

func TestRelay_SkipsOwnOrigin(t *testing.T) {
	local := &captureTransport{}
	relay := NewRelay(nil, local, DefaultJetStreamConfig(), "node-a")

	lotteryID := uuid.New()
	ev := testEvent(t, lotteryID)
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	own := fakeMsg{
		subject: RoomSubject("draft.rooms", lotteryID, ev.Type),
		data:    data,
		headers: nats.Header{headerOrigin: []string{"node-a"}},
	}
	require.NoError(t, relay.handle(own))
	assert.Empty(t, local.all())

	remote := own
	remote.headers = nats.Header{headerOrigin: []string{"node-b"}}
	require.NoError(t, relay.handle(remote))
	got := local.all()
	require.Len(t, got, 1)
	assert.Equal(t, ev.ID, got[0].ID)
	assert.Equal(t, lotteryID, got[0].LotteryID)
}

func TestRelay_RejectsGarbage(t *testing.T) {
	relay := NewRelay(nil, &captureTransport{}, DefaultJetStreamConfig(), "node-a")
	err := relay.handle(fakeMsg{subject: "draft.rooms.x", data: []byte("{")})
	assert.Error(t, err)
}
