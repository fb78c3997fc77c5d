package models

import (
	"time"

	"github.com/google/uuid"
)

// Phase defines the lifecycle phase of a draft room.
type Phase string

const (
	PhaseWelcome   Phase = "WELCOME"
	PhaseLobby     Phase = "LOBBY"
	PhaseCountdown Phase = "COUNTDOWN"
	PhasePlayroom  Phase = "PLAYROOM"
	PhaseCompleted Phase = "COMPLETED"
)

// AutoPickScope selects which auto-pick flag a preference update targets.
type AutoPickScope string

const (
	AutoPickScopeNext    AutoPickScope = "NEXT"
	AutoPickScopeCurrent AutoPickScope = "CURRENT"
)

// RoomMetrics is the running bookkeeping kept for one room.
type RoomMetrics struct {
	ManualPicks int        `json:"manual_picks"`
	AutoPicks   int        `json:"auto_picks"`
	AFKPicks    int        `json:"afk_picks"`
	Rejections  int        `json:"rejections"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TicketResult is the per-ticket section of a finished draft.
type TicketResult struct {
	TicketID   uuid.UUID   `json:"ticket_id"`
	UserID     uuid.UUID   `json:"user_id"`
	ItemIDs    []uuid.UUID `json:"item_ids"`
	Rounds     []int       `json:"rounds"`
	TotalValue float64     `json:"total_value"`
}

// DraftSummary is the aggregate written when a draft completes.
type DraftSummary struct {
	LotteryID   uuid.UUID      `json:"lottery_id"`
	TotalPicks  int            `json:"total_picks"`
	TotalRounds int            `json:"total_rounds"`
	TotalValue  float64        `json:"total_value"`
	Tickets     []TicketResult `json:"tickets"`
	CompletedAt time.Time      `json:"completed_at"`
}
