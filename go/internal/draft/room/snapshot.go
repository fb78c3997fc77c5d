package room

import (
	"github.com/google/uuid"

	"github.com/mcdev12/partdraft/go/internal/models"
)

// Snapshot is a read-only copy of room state for late joiners and admin views.
type Snapshot struct {
	LotteryID       uuid.UUID           `json:"lottery_id"`
	Phase           models.Phase        `json:"phase"`
	Shuffling       bool                `json:"shuffling"`
	Roster          []models.Ticket     `json:"roster"`
	Round           int                 `json:"round"`
	Pick            int                 `json:"pick"`
	CurrentDrafter  *models.Ticket      `json:"current_drafter,omitempty"`
	LobbyCountdown  int                 `json:"lobby_countdown"`
	TurnCountdown   int                 `json:"turn_countdown"`
	Participants    int                 `json:"participants"`
	AvailableItems  []models.Item       `json:"available_items"`
	History         []models.PickRecord `json:"history"`
	TotalItems      int                 `json:"total_items"`
	AutoPickCurrent []uuid.UUID         `json:"auto_pick_current"`
	AutoPickNext    []uuid.UUID         `json:"auto_pick_next"`
	Metrics         models.RoomMetrics  `json:"metrics"`
}

func (r *Room) Snapshot() Snapshot {
	s := Snapshot{
		LotteryID:      r.lotteryID,
		Phase:          r.phase,
		Shuffling:      r.shuffling,
		Roster:         r.Roster(),
		Round:          r.round,
		Pick:           r.pick,
		LobbyCountdown: r.lobbyCountdown,
		TurnCountdown:  r.turnCountdown,
		Participants:   len(r.participants),
		AvailableItems: r.index.AvailableItems(),
		History:        r.ledger.History(),
		TotalItems:     r.index.CatalogSize(),
		Metrics:        r.metrics,
	}
	if d, ok := r.Drafter(); ok {
		s.CurrentDrafter = &d
	}
	for _, t := range r.roster {
		if r.autoPickCurrent[t.UserID] && !containsID(s.AutoPickCurrent, t.UserID) {
			s.AutoPickCurrent = append(s.AutoPickCurrent, t.UserID)
		}
		if r.autoPickNext[t.UserID] && !containsID(s.AutoPickNext, t.UserID) {
			s.AutoPickNext = append(s.AutoPickNext, t.UserID)
		}
	}
	return s
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
