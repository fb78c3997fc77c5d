package adminrpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partdraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/partdraft/go/internal/draft/outbox"
	"github.com/mcdev12/partdraft/go/internal/draft/preload"
	"github.com/mcdev12/partdraft/go/internal/draft/registry"
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

type fixedConns int

func (f fixedConns) ConnectionCount() int { return int(f) }

type fixedHealth struct{}

func (fixedHealth) Health() outbox.HealthStatus {
	return outbox.HealthStatus{Healthy: true, Running: true, QueueSize: 16}
}

func setup(t *testing.T) (*Client, *registry.Registry) {
	t.Helper()
	store := &memoryStore{}
	for i := 0; i < 2; i++ {
		store.roster = append(store.roster, models.Ticket{ID: uuid.New(), UserID: uuid.New()})
		store.items = append(store.items, models.Item{ID: uuid.New(), Value: float64(i + 1)})
	}
	clock := clockwork.NewRealClock()
	loader := preload.NewPreloader(store, preload.NewMemoryCaches(clock, time.Minute), clock, preload.DefaultConfig())
	reg := registry.New(loader, orchestrator.DefaultConfig(), registry.Deps{Clock: clockwork.NewFakeClock()})
	t.Cleanup(func() { _ = reg.Shutdown(context.Background()) })

	mux := http.NewServeMux()
	mux.Handle(NewAdminServiceHandler(NewService(reg, fixedConns(3), fixedHealth{})))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), srv.URL), reg
}

func TestAdmin_GetRoomState(t *testing.T) {
	client, reg := setup(t)
	ctx := context.Background()
	lotteryID := uuid.New()
	_, err := reg.Ensure(ctx, lotteryID)
	require.NoError(t, err)

	resp, err := client.GetRoomState(ctx, &GetRoomStateRequest{LotteryID: lotteryID})
	require.NoError(t, err)
	assert.Equal(t, lotteryID, resp.Room.LotteryID)
	assert.Equal(t, models.PhaseLobby, resp.Room.Phase)
	assert.Len(t, resp.Room.Roster, 2)

	_, err = client.GetRoomState(ctx, &GetRoomStateRequest{LotteryID: uuid.New()})
	require.Error(t, err)
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = client.GetRoomState(ctx, &GetRoomStateRequest{})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestAdmin_ListRooms(t *testing.T) {
	client, reg := setup(t)
	ctx := context.Background()

	resp, err := client.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, resp.Rooms)

	for i := 0; i < 2; i++ {
		_, err := reg.Ensure(ctx, uuid.New())
		require.NoError(t, err)
	}
	resp, err = client.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, resp.Rooms, 2)
	for _, r := range resp.Rooms {
		assert.Equal(t, 2, r.Tickets)
		assert.Equal(t, 2, r.Remaining)
		assert.Equal(t, models.PhaseLobby, r.Phase)
	}
}

func TestAdmin_ForceStart(t *testing.T) {
	client, reg := setup(t)
	ctx := context.Background()
	lotteryID := uuid.New()
	_, err := reg.Ensure(ctx, lotteryID)
	require.NoError(t, err)

	resp, err := client.ForceStart(ctx, &ForceStartRequest{LotteryID: lotteryID})
	require.NoError(t, err)
	assert.Equal(t, models.PhaseLobby, resp.Phase)

	state, err := client.GetRoomState(ctx, &GetRoomStateRequest{LotteryID: lotteryID})
	require.NoError(t, err)
	assert.True(t, state.Room.Shuffling)

	_, err = client.ForceStart(ctx, &ForceStartRequest{LotteryID: lotteryID})
	require.Error(t, err)
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	_, err = client.ForceStart(ctx, &ForceStartRequest{LotteryID: uuid.New()})
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestAdmin_GetStats(t *testing.T) {
	client, reg := setup(t)
	ctx := context.Background()
	lotteryID := uuid.New()
	_, err := reg.Ensure(ctx, lotteryID)
	require.NoError(t, err)

	resp, err := client.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Rooms)
	assert.Equal(t, 3, resp.Connections)
	require.NotNil(t, resp.Outbox)
	assert.True(t, resp.Outbox.Healthy)
	require.Len(t, resp.PerRoom, 1)
	assert.Equal(t, lotteryID, resp.PerRoom[0].LotteryID)
	assert.Zero(t, resp.PerRoom[0].Metrics.Rejections)
}
