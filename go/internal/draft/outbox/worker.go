package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partdraft/go/internal/models"
)

type Config struct {
	QueueSize  int
	BatchSize  int
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:  1024,
		BatchSize:  50,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Worker drains draft-result jobs into a ResultStore on its own goroutine.
// Enqueueing never blocks; jobs are dropped when the queue is full.
type Worker struct {
	store   ResultStore
	config  Config
	clock   clockwork.Clock
	metrics MetricsCollector

	jobs chan Job

	mu            sync.Mutex
	running       bool
	stopChan      chan struct{}
	wg            sync.WaitGroup
	lastPersisted time.Time
}

func NewWorker(store ResultStore, cfg Config, clock clockwork.Clock, metrics MetricsCollector) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &Worker{
		store:    store,
		config:   cfg,
		clock:    clock,
		metrics:  metrics,
		jobs:     make(chan Job, cfg.QueueSize),
		stopChan: make(chan struct{}),
	}
}

func (w *Worker) InitResult(lotteryID uuid.UUID, roster []models.Ticket, startedAt time.Time) {
	w.enqueue(Job{Kind: JobInitResult, LotteryID: lotteryID, Roster: roster, StartedAt: startedAt})
}

func (w *Worker) AppendPick(lotteryID uuid.UUID, pick models.PickRecord) {
	w.enqueue(Job{Kind: JobAppendPick, LotteryID: lotteryID, Pick: &pick})
}

func (w *Worker) FinalizeResult(summary models.DraftSummary) {
	w.enqueue(Job{Kind: JobFinalizeResult, LotteryID: summary.LotteryID, Summary: &summary})
}

// enqueue adds a job, reporting false if it was dropped.
func (w *Worker) enqueue(job Job) bool {
	job.EnqueuedAt = w.clock.Now()
	select {
	case w.jobs <- job:
		w.metrics.RecordQueueDepth(len(w.jobs))
		return true
	default:
		w.metrics.RecordDropped(job.Kind)
		log.Warn().
			Str("lottery_id", job.LotteryID.String()).
			Str("kind", string(job.Kind)).
			Msg("outbox queue full, dropping job")
		return false
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Int("queue_size", w.config.QueueSize).
		Int("batch_size", w.config.BatchSize).
		Msg("outbox worker started")
	return nil
}

// Stop waits for queued jobs to be written before returning.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	log.Info().Msg("outbox worker stopped")
	return nil
}

func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) QueueDepth() int { return len(w.jobs) }

func (w *Worker) LastPersisted() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastPersisted
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			w.drain(ctx)
			return
		case job := <-w.jobs:
			w.processBatch(ctx, w.collect(job))
		}
	}
}

// collect pulls whatever else is already queued, up to the batch size.
func (w *Worker) collect(first Job) []Job {
	batch := []Job{first}
	for len(batch) < w.config.BatchSize {
		select {
		case job := <-w.jobs:
			batch = append(batch, job)
		default:
			return batch
		}
	}
	return batch
}

func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case job := <-w.jobs:
			w.processBatch(ctx, w.collect(job))
		default:
			return
		}
	}
}

// processBatch writes jobs in order, folding runs of picks for the same
// lottery into a single append.
func (w *Worker) processBatch(ctx context.Context, batch []Job) {
	start := w.clock.Now()
	w.metrics.RecordQueueDepth(len(w.jobs))

	for i := 0; i < len(batch); {
		job := batch[i]
		if job.Kind != JobAppendPick {
			w.write(ctx, job.Kind, job.LotteryID, 1, func(ctx context.Context) error {
				return w.apply(ctx, job)
			})
			i++
			continue
		}

		j := i
		var picks []models.PickRecord
		for j < len(batch) && batch[j].Kind == JobAppendPick && batch[j].LotteryID == job.LotteryID {
			picks = append(picks, *batch[j].Pick)
			j++
		}
		w.write(ctx, JobAppendPick, job.LotteryID, len(picks), func(ctx context.Context) error {
			return w.store.AppendPicks(ctx, job.LotteryID, picks)
		})
		i = j
	}

	w.metrics.RecordBatchProcessed(len(batch), w.clock.Since(start))
}

func (w *Worker) apply(ctx context.Context, job Job) error {
	switch job.Kind {
	case JobInitResult:
		return w.store.InitResult(ctx, job.LotteryID, job.Roster, job.StartedAt)
	case JobFinalizeResult:
		return w.store.FinalizeResult(ctx, *job.Summary)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func (w *Worker) write(ctx context.Context, kind JobKind, lotteryID uuid.UUID, count int, fn func(context.Context) error) {
	start := w.clock.Now()
	err := w.writeWithRetry(ctx, kind, lotteryID, fn)
	for i := 0; i < count; i++ {
		w.metrics.RecordJobProcessed(kind, err == nil, w.clock.Since(start))
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("lottery_id", lotteryID.String()).
			Str("kind", string(kind)).
			Int("jobs", count).
			Msg("failed to persist draft result")
		return
	}

	w.mu.Lock()
	w.lastPersisted = w.clock.Now()
	w.mu.Unlock()
}

func (w *Worker) writeWithRetry(ctx context.Context, kind JobKind, lotteryID uuid.UUID, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 && w.config.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.clock.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}

		err := fn(ctx)
		w.metrics.RecordWriteAttempt(kind, attempt+1, err == nil)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn().
			Err(err).
			Str("lottery_id", lotteryID.String()).
			Str("kind", string(kind)).
			Int("attempt", attempt+1).
			Msg("draft result write failed, retrying")
	}

	return fmt.Errorf("failed after %d attempts: %w", w.config.MaxRetries+1, lastErr)
}
