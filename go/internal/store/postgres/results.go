package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/partdraft/go/internal/models"
	"github.com/mcdev12/partdraft/go/internal/sqlutil"
)

const (
	resultStatusInProgress = "IN_PROGRESS"
	resultStatusCompleted  = "COMPLETED"
)

const initResultSQL = `
INSERT INTO draft_results (lottery_id, status, roster, started_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (lottery_id) DO NOTHING`

const appendPicksSQL = `
INSERT INTO draft_result_picks
    (lottery_id, overall_pick, round, pick, ticket_id, user_id, item_id, method, picked_at)
SELECT $1, p.overall_pick, p.round, p.pick, p.ticket_id, p.user_id, p.item_id, p.method, p.picked_at
FROM unnest($2::int[], $3::int[], $4::int[], $5::uuid[], $6::uuid[], $7::uuid[], $8::text[], $9::timestamptz[])
    AS p(overall_pick, round, pick, ticket_id, user_id, item_id, method, picked_at)
ON CONFLICT (lottery_id, overall_pick) DO NOTHING`

const countPicksSQL = `
UPDATE draft_results
SET total_picks = (SELECT count(*) FROM draft_result_picks WHERE lottery_id = $1)
WHERE lottery_id = $1`

const finalizeResultSQL = `
INSERT INTO draft_results (lottery_id, status, started_at, completed_at, total_picks, summary)
VALUES ($1, $2, $3, $3, $4, $5)
ON CONFLICT (lottery_id) DO UPDATE
SET status = EXCLUDED.status,
    completed_at = EXCLUDED.completed_at,
    total_picks = EXCLUDED.total_picks,
    summary = EXCLUDED.summary`

const getResultSQL = `
SELECT status, started_at, completed_at, total_picks, summary
FROM draft_results
WHERE lottery_id = $1`

// ResultStore writes draft results through database/sql. Every write is
// idempotent so the outbox can retry freely.
type ResultStore struct {
	db *sql.DB
}

func NewResultStore(db *sql.DB) *ResultStore {
	return &ResultStore{db: db}
}

// resultQueries binds the statements to one transaction.
type resultQueries struct {
	tx *sql.Tx
}

func newResultQueries(tx *sql.Tx) *resultQueries {
	return &resultQueries{tx: tx}
}

func (s *ResultStore) InitResult(ctx context.Context, lotteryID uuid.UUID, roster []models.Ticket, startedAt time.Time) error {
	data, err := json.Marshal(roster)
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, initResultSQL, lotteryID, resultStatusInProgress, data, startedAt); err != nil {
		return fmt.Errorf("failed to init draft result: %w", err)
	}
	return nil
}

func (s *ResultStore) AppendPicks(ctx context.Context, lotteryID uuid.UUID, picks []models.PickRecord) error {
	if len(picks) == 0 {
		return nil
	}
	return sqlutil.Run(ctx, s.db, newResultQueries, func(q *resultQueries) error {
		if err := q.insertPicks(ctx, lotteryID, picks); err != nil {
			return fmt.Errorf("failed to append picks: %w", err)
		}
		if _, err := q.tx.ExecContext(ctx, countPicksSQL, lotteryID); err != nil {
			return fmt.Errorf("failed to update pick count: %w", err)
		}
		return nil
	})
}

func (q *resultQueries) insertPicks(ctx context.Context, lotteryID uuid.UUID, picks []models.PickRecord) error {
	n := len(picks)
	var (
		overall  = make([]int64, n)
		rounds   = make([]int64, n)
		numbers  = make([]int64, n)
		tickets  = make([]string, n)
		users    = make([]string, n)
		items    = make([]string, n)
		methods  = make([]string, n)
		pickedAt = make([]string, n)
	)
	for i, p := range picks {
		overall[i] = int64(p.OverallPick)
		rounds[i] = int64(p.Round)
		numbers[i] = int64(p.Pick)
		tickets[i] = p.TicketID.String()
		users[i] = p.User.ID.String()
		items[i] = p.Item.ID.String()
		methods[i] = string(p.Method)
		pickedAt[i] = p.PickedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := q.tx.ExecContext(ctx, appendPicksSQL, lotteryID,
		pq.Array(overall), pq.Array(rounds), pq.Array(numbers),
		pq.Array(tickets), pq.Array(users), pq.Array(items),
		pq.Array(methods), pq.Array(pickedAt),
	)
	return err
}

func (s *ResultStore) FinalizeResult(ctx context.Context, summary models.DraftSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	doc := pqtype.NullRawMessage{RawMessage: data, Valid: len(data) > 0}
	if _, err := s.db.ExecContext(ctx, finalizeResultSQL,
		summary.LotteryID, resultStatusCompleted, summary.CompletedAt, summary.TotalPicks, doc,
	); err != nil {
		return fmt.Errorf("failed to finalize draft result: %w", err)
	}
	return nil
}

// Result is a stored draft result row
type Result struct {
	LotteryID   uuid.UUID
	Status      string
	StartedAt   time.Time
	CompletedAt *time.Time
	TotalPicks  int
	Summary     *models.DraftSummary
}

// GetResult reads one result row back
func (s *ResultStore) GetResult(ctx context.Context, lotteryID uuid.UUID) (*Result, error) {
	var (
		r           = Result{LotteryID: lotteryID}
		completedAt sql.NullTime
		summary     pqtype.NullRawMessage
	)
	err := s.db.QueryRowContext(ctx, getResultSQL, lotteryID).Scan(&r.Status, &r.StartedAt, &completedAt, &r.TotalPicks, &summary)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft result: %w", err)
	}
	r.CompletedAt = sqlutil.FromSqlTime(completedAt)
	if summary.Valid {
		var s models.DraftSummary
		if err := json.Unmarshal(summary.RawMessage, &s); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
		r.Summary = &s
	}
	return &r, nil
}

// Completed reports whether the lottery's draft was finalized. A lottery
// with no result row has not been drafted yet.
func (s *ResultStore) Completed(ctx context.Context, lotteryID uuid.UUID) (bool, error) {
	r, err := s.GetResult(ctx, lotteryID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return r.Status == resultStatusCompleted, nil
}
