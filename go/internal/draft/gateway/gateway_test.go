package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partdraft/go/internal/draft/events"
	"github.com/mcdev12/partdraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/partdraft/go/internal/draft/outbox"
	"github.com/mcdev12/partdraft/go/internal/draft/preload"
	"github.com/mcdev12/partdraft/go/internal/draft/registry"
	"github.com/mcdev12/partdraft/go/internal/draft/room"
	"github.com/mcdev12/partdraft/go/internal/models"
)

type memoryStore struct {
	items  []models.Item
	roster []models.Ticket
}

func (m *memoryStore) LoadCatalog(context.Context, uuid.UUID) ([]models.Item, error) {
	return m.items, nil
}

func (m *memoryStore) LoadRoster(context.Context, uuid.UUID) ([]models.Ticket, error) {
	return m.roster, nil
}

func (m *memoryStore) LoadPriorities(context.Context, uuid.UUID, uuid.UUID) ([]models.PriorityEntry, error) {
	return nil, nil
}

type stubHealth struct{ status outbox.HealthStatus }

func (s stubHealth) Health() outbox.HealthStatus { return s.status }

type testServer struct {
	srv       *httptest.Server
	lotteryID uuid.UUID
	users     []uuid.UUID
	items     []models.Item
	registry  *registry.Registry
}

func newTestServer(t *testing.T, cfg ConnectionConfig, health OutboxHealth) *testServer {
	t.Helper()
	store := &memoryStore{}
	ts := &testServer{lotteryID: uuid.New()}
	for i := 0; i < 2; i++ {
		uid := uuid.New()
		ts.users = append(ts.users, uid)
		store.roster = append(store.roster, models.Ticket{ID: uuid.New(), UserID: uid})
	}
	for i := 0; i < 3; i++ {
		store.items = append(store.items, models.Item{ID: uuid.New(), Value: float64(i + 1)})
	}
	ts.items = store.items

	realClock := clockwork.NewRealClock()
	loader := preload.NewPreloader(store, preload.NewMemoryCaches(realClock, time.Minute), realClock, preload.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cm := NewConnectionManager(cfg)
	go cm.Start(ctx)

	roomCfg := orchestrator.DefaultConfig()
	roomCfg.BroadcastWindow = 0
	ts.registry = registry.New(loader, roomCfg, registry.Deps{Clock: clockwork.NewFakeClock(), Transport: cm})
	cm.SetRooms(ts.registry)

	router := NewRouter(NewWebSocketHandler(cm), NewStateHandler(ts.registry, cm, health))
	ts.srv = httptest.NewServer(CORS(nil)(router))
	t.Cleanup(func() {
		ts.srv.Close()
		_ = ts.registry.Shutdown(context.Background())
		cancel()
	})
	return ts
}

func (ts *testServer) dial(t *testing.T, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws/draft?lottery_id=" + ts.lotteryID.String()
	if userID != uuid.Nil {
		url += "&user_id=" + userID.String()
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

// readUntil returns every event read up to and including the first of typ.
func readUntil(t *testing.T, conn *websocket.Conn, typ events.EventType) []events.Event {
	t.Helper()
	var seen []events.Event
	for {
		ev := readEvent(t, conn)
		seen = append(seen, ev)
		if ev.Type == typ {
			return seen
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func roomError(t *testing.T, ev events.Event) events.RoomErrorPayload {
	t.Helper()
	var p events.RoomErrorPayload
	require.NoError(t, json.Unmarshal(ev.Data, &p))
	return p
}

func TestWebSocket_JoinReceivesRoomState(t *testing.T) {
	ts := newTestServer(t, DefaultConnectionConfig(), nil)
	conn := ts.dial(t, ts.users[0])

	seen := readUntil(t, conn, events.EventTypeRoomState)
	ev := seen[len(seen)-1]
	var snap room.Snapshot
	require.NoError(t, json.Unmarshal(ev.Data, &snap))
	assert.Equal(t, ts.lotteryID, snap.LotteryID)
	assert.Equal(t, models.PhaseLobby, snap.Phase)
	assert.Equal(t, 1, snap.Participants)
	assert.Len(t, snap.AvailableItems, 3)
}

func TestWebSocket_RejectionGoesOnlyToSender(t *testing.T) {
	ts := newTestServer(t, DefaultConnectionConfig(), nil)
	c1 := ts.dial(t, ts.users[0])
	readUntil(t, c1, events.EventTypeRoomState)
	c2 := ts.dial(t, ts.users[1])
	readUntil(t, c2, events.EventTypeRoomState)

	send(t, c2, ClientMessage{Action: ActionPickItem, ItemID: ts.items[0].ID})
	ev := readUntil(t, c2, events.EventTypeRoomError)
	p := roomError(t, ev[len(ev)-1])
	assert.Equal(t, "The draft is not active.", p.Reason)
	assert.Equal(t, string(ActionPickItem), p.Action)
	assert.False(t, p.Fatal)

	send(t, c1, ClientMessage{Action: ActionSetReady, Ready: true})
	for _, ev := range readUntil(t, c1, events.EventTypeRosterChanged) {
		assert.NotEqual(t, events.EventTypeRoomError, ev.Type)
	}
}

func TestWebSocket_StartBroadcastsShuffle(t *testing.T) {
	ts := newTestServer(t, DefaultConnectionConfig(), nil)
	c1 := ts.dial(t, ts.users[0])
	readUntil(t, c1, events.EventTypeRoomState)
	c2 := ts.dial(t, ts.users[1])
	readUntil(t, c2, events.EventTypeRoomState)

	send(t, c1, ClientMessage{Action: ActionSetReady, Ready: true})
	send(t, c2, ClientMessage{Action: ActionSetReady, Ready: true})
	require.Eventually(t, func() bool {
		s, ok := ts.registry.Get(ts.lotteryID)
		if !ok {
			return false
		}
		snap, err := s.Snapshot(context.Background())
		if err != nil {
			return false
		}
		for _, tk := range snap.Roster {
			if tk.Status != models.TicketStatusReady {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	send(t, c1, ClientMessage{Action: ActionStartDraft})
	readUntil(t, c1, events.EventTypeShuffleStarted)
	readUntil(t, c2, events.EventTypeShuffleStarted)
}

func TestWebSocket_ForceStartNeedsPermission(t *testing.T) {
	ts := newTestServer(t, DefaultConnectionConfig(), nil)
	c1 := ts.dial(t, ts.users[0])
	readUntil(t, c1, events.EventTypeRoomState)

	send(t, c1, ClientMessage{Action: ActionStartDraft, Force: true})
	ev := readUntil(t, c1, events.EventTypeRoomError)
	assert.Equal(t, "Not every participant is ready yet.", roomError(t, ev[len(ev)-1]).Reason)

	send(t, c1, ClientMessage{Action: "dance"})
	ev = readUntil(t, c1, events.EventTypeRoomError)
	assert.Equal(t, "Unrecognized message.", roomError(t, ev[len(ev)-1]).Reason)
}

func TestWebSocket_ForceStartAllowed(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.AllowForceStart = true
	ts := newTestServer(t, cfg, nil)
	c1 := ts.dial(t, ts.users[0])
	readUntil(t, c1, events.EventTypeRoomState)

	send(t, c1, ClientMessage{Action: ActionStartDraft, Force: true})
	readUntil(t, c1, events.EventTypeShuffleStarted)
}

func TestWebSocket_DisconnectLeavesRoom(t *testing.T) {
	ts := newTestServer(t, DefaultConnectionConfig(), nil)
	c1 := ts.dial(t, ts.users[0])
	readUntil(t, c1, events.EventTypeRoomState)
	c2 := ts.dial(t, uuid.Nil)
	readUntil(t, c2, events.EventTypeRoomState)

	require.NoError(t, c2.Close())
	require.Eventually(t, func() bool {
		s, ok := ts.registry.Get(ts.lotteryID)
		if !ok {
			return false
		}
		snap, err := s.Snapshot(context.Background())
		return err == nil && snap.Participants == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_BadParams(t *testing.T) {
	ts := newTestServer(t, DefaultConnectionConfig(), nil)

	resp, err := http.Get(ts.srv.URL + "/ws/draft?lottery_id=nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.srv.URL + "/ws/draft?lottery_id=" + uuid.NewString() + "&user_id=nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTP_RoomState(t *testing.T) {
	ts := newTestServer(t, DefaultConnectionConfig(), nil)
	c1 := ts.dial(t, ts.users[0])
	readUntil(t, c1, events.EventTypeRoomState)

	resp, err := http.Get(ts.srv.URL + "/rooms/" + ts.lotteryID.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap room.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, models.PhaseLobby, snap.Phase)

	resp2, err := http.Get(ts.srv.URL + "/rooms/" + uuid.NewString())
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)

	resp3, err := http.Get(ts.srv.URL + "/rooms/")
	require.NoError(t, err)
	defer resp3.Body.Close()
	var list []RoomSummary
	require.NoError(t, json.NewDecoder(resp3.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Tickets)
	assert.Equal(t, 3, list[0].TotalItems)
}

func TestHTTP_Health(t *testing.T) {
	ts := newTestServer(t, DefaultConnectionConfig(), stubHealth{status: outbox.HealthStatus{Healthy: false, Running: false}})

	resp, err := http.Get(ts.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Zero(t, body.Rooms)
}
