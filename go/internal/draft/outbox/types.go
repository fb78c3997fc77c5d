package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/partdraft/go/internal/models"
)

// JobKind names a draft-result write.
type JobKind string

const (
	JobInitResult     JobKind = "draft:init_result"
	JobAppendPick     JobKind = "draft:append_pick"
	JobFinalizeResult JobKind = "draft:finalize_result"
)

// Job is one queued draft-result write
type Job struct {
	Kind       JobKind              `json:"kind"`
	LotteryID  uuid.UUID            `json:"lottery_id"`
	Roster     []models.Ticket      `json:"roster,omitempty"`
	StartedAt  time.Time            `json:"started_at,omitempty"`
	Pick       *models.PickRecord   `json:"pick,omitempty"`
	Summary    *models.DraftSummary `json:"summary,omitempty"`
	EnqueuedAt time.Time            `json:"enqueued_at"`
}

// ResultStore is the persistent draft-result document store.
type ResultStore interface {
	// InitResult must be idempotent.
	InitResult(ctx context.Context, lotteryID uuid.UUID, roster []models.Ticket, startedAt time.Time) error
	AppendPicks(ctx context.Context, lotteryID uuid.UUID, picks []models.PickRecord) error
	FinalizeResult(ctx context.Context, summary models.DraftSummary) error
}

// Sink accepts draft-result writes without blocking the caller.
type Sink interface {
	InitResult(lotteryID uuid.UUID, roster []models.Ticket, startedAt time.Time)
	AppendPick(lotteryID uuid.UUID, pick models.PickRecord)
	FinalizeResult(summary models.DraftSummary)
}

// NopSink discards every write.
type NopSink struct{}

func (NopSink) InitResult(uuid.UUID, []models.Ticket, time.Time) {}
func (NopSink) AppendPick(uuid.UUID, models.PickRecord)           {}
func (NopSink) FinalizeResult(models.DraftSummary)                {}
