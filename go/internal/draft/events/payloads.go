package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/partdraft/go/internal/models"
)

// Event payload types shared by the orchestrator, the gateway and the relay.

// PhaseChangedPayload is the payload for a PhaseChanged event
type PhaseChangedPayload struct {
	Phase     models.Phase `json:"phase"`
	Previous  models.Phase `json:"previous"`
	ChangedAt time.Time    `json:"changed_at"`
}

// RosterChangedPayload is the payload for a RosterChanged event
type RosterChangedPayload struct {
	Roster []models.Ticket `json:"roster"`
}

// CountdownTickPayload is used for both lobby and turn countdown ticks
type CountdownTickPayload struct {
	Remaining int        `json:"remaining"`
	TicketID  *uuid.UUID `json:"ticket_id,omitempty"` // set for turn ticks
	Round     int        `json:"round,omitempty"`
	Pick      int        `json:"pick,omitempty"`
}

// ShufflePayload is the payload for ShuffleStarted and ShuffleEnded events
type ShufflePayload struct {
	Roster     []models.Ticket `json:"roster"`
	DisplayFor string          `json:"display_for,omitempty"`
}

// TurnStartedPayload is the payload for a TurnStarted event
type TurnStartedPayload struct {
	Drafter         models.Ticket `json:"drafter"`
	Round           int           `json:"round"`
	Pick            int           `json:"pick"`
	StartedAt       time.Time     `json:"started_at"`
	TimeoutAt       time.Time     `json:"timeout_at"`
	AutoPickPending bool          `json:"auto_pick_pending"`
}

// ItemPickedPayload is the payload for an ItemPicked event
type ItemPickedPayload struct {
	Pick        models.PickRecord `json:"pick"`
	NextDrafter *models.Ticket    `json:"next_drafter,omitempty"`
	Round       int               `json:"round"`
	PickNumber  int               `json:"pick_number"`
	TotalPicks  int               `json:"total_picks"`
	Remaining   int               `json:"remaining"`
}

// AutoPickPreferencePayload is the payload for an AutoPickPreferenceChanged event
type AutoPickPreferencePayload struct {
	UserID  uuid.UUID            `json:"user_id"`
	Enabled bool                 `json:"enabled"`
	Scope   models.AutoPickScope `json:"scope"`
	Active  bool                 `json:"active"`
}

// ParticipantsChangedPayload is the payload for a ParticipantsChanged event
type ParticipantsChangedPayload struct {
	Count int `json:"count"`
}

// DraftCompletedPayload is the payload for a DraftCompleted event
type DraftCompletedPayload struct {
	LotteryID   uuid.UUID           `json:"lottery_id"`
	CompletedAt time.Time           `json:"completed_at"`
	Duration    string              `json:"duration"`
	TotalPicks  int                 `json:"total_picks"`
	Summary     models.DraftSummary `json:"summary"`
	Forced      bool                `json:"forced,omitempty"`
}

// RoomErrorPayload carries a human readable reason
type RoomErrorPayload struct {
	Reason string `json:"reason"`
	Action string `json:"action,omitempty"` // set on rejections sent to a single connection
	Fatal  bool   `json:"fatal,omitempty"`
}
