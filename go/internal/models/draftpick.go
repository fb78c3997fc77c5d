package models

import (
	"time"

	"github.com/google/uuid"
)

// PickMethod records how an item was selected.
type PickMethod string

const (
	PickMethodManual PickMethod = "MANUAL"
	PickMethodAuto   PickMethod = "AUTO"
	PickMethodAFK    PickMethod = "AFK"
)

// PickRecord is one entry in a room's pick history.
type PickRecord struct {
	User        UserInfo   `json:"user"`
	Item        Item       `json:"item"`
	TicketID    uuid.UUID  `json:"ticket_id"`
	Round       int        `json:"round"`
	Pick        int        `json:"pick"`         // pick number in the round
	OverallPick int        `json:"overall_pick"` // pick number overall
	Method      PickMethod `json:"method"`
	PickedAt    time.Time  `json:"picked_at"`
}

// PriorityEntry is one ranked preference; lower rank is more preferred.
type PriorityEntry struct {
	UserID uuid.UUID `json:"user_id"`
	ItemID uuid.UUID `json:"item_id"`
	Rank   int       `json:"rank"`
}
