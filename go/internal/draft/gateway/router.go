package gateway

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter registers the websocket, room state and health routes.
func NewRouter(ws *WebSocketHandler, state *StateHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", state.HandleHealth)
	r.Get("/ws/draft", ws.HandleRoomConnection)
	r.Get("/ws/stats", ws.HandleConnectionStats)
	r.Route("/rooms", func(r chi.Router) {
		r.Get("/", state.HandleListRooms)
		r.Get("/{lotteryID}", state.HandleGetRoom)
	})
	return r
}
