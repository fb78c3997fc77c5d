package adminrpc

import (
	"github.com/google/uuid"

	"github.com/mcdev12/partdraft/go/internal/draft/broadcast"
	"github.com/mcdev12/partdraft/go/internal/draft/outbox"
	"github.com/mcdev12/partdraft/go/internal/draft/room"
	"github.com/mcdev12/partdraft/go/internal/models"
)

type GetRoomStateRequest struct {
	LotteryID uuid.UUID `json:"lottery_id"`
}

type GetRoomStateResponse struct {
	Room room.Snapshot `json:"room"`
}

type ListRoomsRequest struct{}

// RoomInfo is a short description of a live room
type RoomInfo struct {
	LotteryID    uuid.UUID    `json:"lottery_id"`
	Phase        models.Phase `json:"phase"`
	Round        int          `json:"round"`
	Pick         int          `json:"pick"`
	Tickets      int          `json:"tickets"`
	Participants int          `json:"participants"`
	Remaining    int          `json:"remaining"`
}

type ListRoomsResponse struct {
	Rooms []RoomInfo `json:"rooms"`
}

type ForceStartRequest struct {
	LotteryID uuid.UUID `json:"lottery_id"`
}

type ForceStartResponse struct {
	Phase models.Phase `json:"phase"`
}

type GetStatsRequest struct{}

// RoomStats is the per-room section of GetStats
type RoomStats struct {
	LotteryID uuid.UUID          `json:"lottery_id"`
	Phase     models.Phase       `json:"phase"`
	Metrics   models.RoomMetrics `json:"metrics"`
	Broadcast broadcast.Stats    `json:"broadcast"`
}

type GetStatsResponse struct {
	Rooms       int                  `json:"rooms"`
	Connections int                  `json:"connections"`
	Outbox      *outbox.HealthStatus `json:"outbox,omitempty"`
	PerRoom     []RoomStats          `json:"per_room"`
}
