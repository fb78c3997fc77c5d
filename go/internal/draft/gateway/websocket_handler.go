package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for draft rooms
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm}
}

// HandleRoomConnection upgrades the request and joins the caller to a room.
// user_id is optional; anonymous connections only watch.
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	lotteryID, err := uuid.Parse(r.URL.Query().Get("lottery_id"))
	if err != nil {
		http.Error(w, "valid lottery_id is required", http.StatusBadRequest)
		return
	}

	// In production the user comes from the authenticated session.
	userID := uuid.Nil
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		if userID, err = uuid.Parse(raw); err != nil {
			http.Error(w, "invalid user_id format", http.StatusBadRequest)
			return
		}
	}

	conn, err := h.connectionManager.UpgradeConnection(w, r, userID, lotteryID)
	if err != nil {
		log.Error().
			Err(err).
			Str("lottery_id", lotteryID.String()).
			Str("user_id", userID.String()).
			Msg("failed to upgrade WebSocket connection")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.connectionManager.config.ActionTimeout)
	defer cancel()
	if err := h.connectionManager.dispatcher.Join(ctx, conn); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", conn.ID).
			Str("lottery_id", lotteryID.String()).
			Msg("join failed, closing connection")
		h.connectionManager.unregisterConnection(conn)
		return
	}

	go conn.readPump()
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
