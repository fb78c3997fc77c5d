package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partdraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/partdraft/go/internal/draft/outbox"
	"github.com/mcdev12/partdraft/go/internal/models"
)

// OutboxHealth reports the persistence queue state. *outbox.Worker implements it.
type OutboxHealth interface {
	Health() outbox.HealthStatus
}

// RoomSummary is one entry of the room listing
type RoomSummary struct {
	LotteryID    uuid.UUID    `json:"lottery_id"`
	Phase        models.Phase `json:"phase"`
	Round        int          `json:"round"`
	Pick         int          `json:"pick"`
	Tickets      int          `json:"tickets"`
	Participants int          `json:"participants"`
	TotalPicks   int          `json:"total_picks"`
	TotalItems   int          `json:"total_items"`
}

// HealthResponse is served on /healthz
type HealthResponse struct {
	Status      string               `json:"status"`
	Rooms       int                  `json:"rooms"`
	Connections int                  `json:"connections"`
	Outbox      *outbox.HealthStatus `json:"outbox,omitempty"`
}

// StateHandler serves read-only room state over HTTP
type StateHandler struct {
	rooms   Rooms
	conns   *ConnectionManager
	outbox  OutboxHealth
	timeout time.Duration
}

// NewStateHandler creates a state handler. health may be nil.
func NewStateHandler(rooms Rooms, conns *ConnectionManager, health OutboxHealth) *StateHandler {
	return &StateHandler{rooms: rooms, conns: conns, outbox: health, timeout: 5 * time.Second}
}

// HandleGetRoom handles GET /rooms/{lotteryID}
func (h *StateHandler) HandleGetRoom(w http.ResponseWriter, r *http.Request) {
	lotteryID, err := uuid.Parse(chi.URLParam(r, "lotteryID"))
	if err != nil {
		http.Error(w, "Invalid lottery ID format", http.StatusBadRequest)
		return
	}
	s, ok := h.rooms.Get(lotteryID)
	if !ok {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	snap, err := s.Snapshot(ctx)
	if err != nil {
		if errors.Is(err, orchestrator.ErrRoomClosed) {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("lottery_id", lotteryID.String()).Msg("failed to get room state")
		http.Error(w, "Failed to get room state", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleListRooms handles GET /rooms
func (h *StateHandler) HandleListRooms(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rooms := []RoomSummary{}
	for _, s := range h.rooms.List() {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			// retired between listing and snapshot
			continue
		}
		rooms = append(rooms, RoomSummary{
			LotteryID:    snap.LotteryID,
			Phase:        snap.Phase,
			Round:        snap.Round,
			Pick:         snap.Pick,
			Tickets:      len(snap.Roster),
			Participants: snap.Participants,
			TotalPicks:   len(snap.History),
			TotalItems:   snap.TotalItems,
		})
	}
	writeJSON(w, http.StatusOK, rooms)
}

// HandleHealth handles GET /healthz
func (h *StateHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Rooms: h.rooms.Len()}
	if h.conns != nil {
		resp.Connections = h.conns.GetConnectionStats().TotalConnections
	}
	status := http.StatusOK
	if h.outbox != nil {
		health := h.outbox.Health()
		resp.Outbox = &health
		if !health.Healthy {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}
