package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partdraft/go/internal/models"
)

// Task payloads
type initResultPayload struct {
	LotteryID uuid.UUID       `json:"lottery_id"`
	Roster    []models.Ticket `json:"roster"`
	StartedAt time.Time       `json:"started_at"`
}

type appendPicksPayload struct {
	LotteryID uuid.UUID           `json:"lottery_id"`
	Picks     []models.PickRecord `json:"picks"`
}

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqStore is a ResultStore that hands writes to an asynq queue so a
// separate consumer can apply them. Task ids make re-enqueues idempotent.
type AsynqStore struct {
	client   TaskEnqueuer
	queue    string
	maxRetry int
}

func NewAsynqStore(client TaskEnqueuer, queue string, maxRetry int) *AsynqStore {
	if queue == "" {
		queue = "default"
	}
	return &AsynqStore{client: client, queue: queue, maxRetry: maxRetry}
}

func (s *AsynqStore) InitResult(ctx context.Context, lotteryID uuid.UUID, roster []models.Ticket, startedAt time.Time) error {
	return s.enqueue(ctx, JobInitResult, "init:"+lotteryID.String(), initResultPayload{
		LotteryID: lotteryID,
		Roster:    roster,
		StartedAt: startedAt,
	})
}

func (s *AsynqStore) AppendPicks(ctx context.Context, lotteryID uuid.UUID, picks []models.PickRecord) error {
	if len(picks) == 0 {
		return nil
	}
	id := fmt.Sprintf("append:%s:%d-%d", lotteryID, picks[0].OverallPick, picks[len(picks)-1].OverallPick)
	return s.enqueue(ctx, JobAppendPick, id, appendPicksPayload{LotteryID: lotteryID, Picks: picks})
}

func (s *AsynqStore) FinalizeResult(ctx context.Context, summary models.DraftSummary) error {
	return s.enqueue(ctx, JobFinalizeResult, "finalize:"+summary.LotteryID.String(), summary)
}

func (s *AsynqStore) enqueue(ctx context.Context, kind JobKind, taskID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	task := asynq.NewTask(string(kind), data)
	info, err := s.client.EnqueueContext(ctx, task,
		asynq.TaskID(taskID),
		asynq.Queue(s.queue),
		asynq.MaxRetry(s.maxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		log.Debug().Str("task_id", taskID).Msg("draft result task already enqueued")
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	log.Debug().
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Str("kind", string(kind)).
		Msg("enqueued draft result task")
	return nil
}

// TaskHandlers applies queued draft-result tasks to a ResultStore.
type TaskHandlers struct {
	store ResultStore
}

func NewTaskHandlers(store ResultStore) *TaskHandlers {
	return &TaskHandlers{store: store}
}

func (h *TaskHandlers) HandleInitResult(ctx context.Context, t *asynq.Task) error {
	var payload initResultPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return h.store.InitResult(ctx, payload.LotteryID, payload.Roster, payload.StartedAt)
}

func (h *TaskHandlers) HandleAppendPicks(ctx context.Context, t *asynq.Task) error {
	var payload appendPicksPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return h.store.AppendPicks(ctx, payload.LotteryID, payload.Picks)
}

func (h *TaskHandlers) HandleFinalizeResult(ctx context.Context, t *asynq.Task) error {
	var summary models.DraftSummary
	if err := json.Unmarshal(t.Payload(), &summary); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return h.store.FinalizeResult(ctx, summary)
}

// NewServeMux routes every draft-result task type to its handler.
func NewServeMux(h *TaskHandlers) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(string(JobInitResult), h.HandleInitResult)
	mux.HandleFunc(string(JobAppendPick), h.HandleAppendPicks)
	mux.HandleFunc(string(JobFinalizeResult), h.HandleFinalizeResult)
	return mux
}
