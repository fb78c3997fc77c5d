// Package room is the state machine for a single lottery draft. A Room is
// not safe for concurrent use; the orchestrator serializes every call.
package room

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/partdraft/go/internal/draft/algorithm"
	"github.com/mcdev12/partdraft/go/internal/draft/ledger"
	"github.com/mcdev12/partdraft/go/internal/models"
)

var (
	ErrWrongPhase     = errors.New("action not allowed in the current phase")
	ErrNotReady       = errors.New("not every participant is ready")
	ErrUnknownTicket  = errors.New("user holds no ticket in this lottery")
	ErrEmptyRoster    = errors.New("roster is empty")
	ErrShuffling      = errors.New("roster is being shuffled")
	ErrAlreadyStarted = errors.New("draft has already started")
)

// Inputs is the preloaded data a room is built from.
type Inputs struct {
	LotteryID  uuid.UUID
	Items      []models.Item
	Roster     []models.Ticket
	Priorities map[uuid.UUID][]models.PriorityEntry
}

// Outcome describes the state after a committed pick.
type Outcome struct {
	Record       models.PickRecord
	Drafter      *models.Ticket // next on the clock, nil once completed
	Round        int
	Pick         int
	RoundChanged bool
	Activated    []uuid.UUID // users whose next-round auto-pick just switched on
	Completed    bool
	TotalPicks   int
	Remaining    int
}

type Room struct {
	lotteryID uuid.UUID
	phase     models.Phase
	shuffling bool

	roster  []models.Ticket
	round   int
	pick    int
	drafter *models.Ticket

	lobbyCountdown int
	turnCountdown  int

	participants    map[string]uuid.UUID
	autoPickCurrent map[uuid.UUID]bool
	autoPickNext    map[uuid.UUID]bool

	index   *Index
	ledger  *ledger.Ledger
	metrics models.RoomMetrics
}

// New builds a room in the welcome phase.
func New(in Inputs, now time.Time) *Room {
	roster := make([]models.Ticket, len(in.Roster))
	copy(roster, in.Roster)
	for i := range roster {
		if roster[i].Status == "" {
			roster[i].Status = models.TicketStatusWaiting
		}
	}
	return &Room{
		lotteryID:       in.LotteryID,
		phase:           models.PhaseWelcome,
		roster:          roster,
		participants:    make(map[string]uuid.UUID),
		autoPickCurrent: make(map[uuid.UUID]bool),
		autoPickNext:    make(map[uuid.UUID]bool),
		index:           NewIndex(in.Items, in.Priorities),
		ledger:          ledger.New(),
		metrics:         models.RoomMetrics{CreatedAt: now},
	}
}

// Open moves a freshly loaded room into the lobby.
func (r *Room) Open() error {
	if r.phase != models.PhaseWelcome {
		return ErrWrongPhase
	}
	r.phase = models.PhaseLobby
	return nil
}

func (r *Room) LotteryID() uuid.UUID        { return r.lotteryID }
func (r *Room) Phase() models.Phase         { return r.phase }
func (r *Room) Shuffling() bool             { return r.shuffling }
func (r *Room) Round() int                  { return r.round }
func (r *Room) Pick() int                   { return r.pick }
func (r *Room) LobbyCountdown() int         { return r.lobbyCountdown }
func (r *Room) TurnCountdown() int          { return r.turnCountdown }
func (r *Room) Ledger() *ledger.Ledger      { return r.ledger }
func (r *Room) Index() *Index               { return r.index }
func (r *Room) ParticipantCount() int       { return len(r.participants) }
func (r *Room) Metrics() models.RoomMetrics { return r.metrics }

// Drafter returns a copy of the ticket on the clock.
func (r *Room) Drafter() (models.Ticket, bool) {
	if r.drafter == nil {
		return models.Ticket{}, false
	}
	return *r.drafter, true
}

func (r *Room) Roster() []models.Ticket {
	out := make([]models.Ticket, len(r.roster))
	copy(out, r.roster)
	return out
}

func (r *Room) HasTicket(userID uuid.UUID) bool {
	for _, t := range r.roster {
		if t.UserID == userID {
			return true
		}
	}
	return false
}

// Join registers a connection. Viewers without tickets are allowed.
func (r *Room) Join(connID string, userID uuid.UUID) {
	r.participants[connID] = userID
}

// Leave drops a connection and reports whether it was present.
func (r *Room) Leave(connID string) bool {
	if _, ok := r.participants[connID]; !ok {
		return false
	}
	delete(r.participants, connID)
	return true
}

func (r *Room) inLobby() error {
	if r.phase != models.PhaseLobby {
		return ErrWrongPhase
	}
	if r.shuffling {
		return ErrShuffling
	}
	return nil
}

// SetReady toggles readiness on every ticket the user holds.
func (r *Room) SetReady(userID uuid.UUID, ready bool) error {
	if err := r.inLobby(); err != nil {
		return err
	}
	status := models.TicketStatusWaiting
	if ready {
		status = models.TicketStatusReady
	}
	found := false
	for i := range r.roster {
		if r.roster[i].UserID == userID {
			r.roster[i].Status = status
			found = true
		}
	}
	if !found {
		return ErrUnknownTicket
	}
	return nil
}

// CanStart checks whether the shuffle may begin. Every ticket must be ready
// unless force is set.
func (r *Room) CanStart(force bool) error {
	if r.phase != models.PhaseLobby {
		if r.phase == models.PhaseWelcome {
			return ErrWrongPhase
		}
		return ErrAlreadyStarted
	}
	if r.shuffling {
		return ErrShuffling
	}
	if len(r.roster) == 0 {
		return ErrEmptyRoster
	}
	if force {
		return nil
	}
	for _, t := range r.roster {
		if t.Status != models.TicketStatusReady {
			return ErrNotReady
		}
	}
	return nil
}

// BeginShuffle deranges the roster and assigns queue numbers.
func (r *Room) BeginShuffle(force bool, s algorithm.Shuffler) error {
	if err := r.CanStart(force); err != nil {
		return err
	}
	r.roster = algorithm.Derange(s, r.roster)
	r.shuffling = true
	return nil
}

// BeginCountdown ends the shuffle display and starts the lobby countdown.
func (r *Room) BeginCountdown(ticks int) error {
	if r.phase != models.PhaseLobby || !r.shuffling {
		return ErrWrongPhase
	}
	r.shuffling = false
	r.phase = models.PhaseCountdown
	r.lobbyCountdown = ticks
	return nil
}

// TickLobby decrements the lobby countdown and returns what is left.
func (r *Room) TickLobby() (int, error) {
	if r.phase != models.PhaseCountdown {
		return 0, ErrWrongPhase
	}
	if r.lobbyCountdown > 0 {
		r.lobbyCountdown--
	}
	return r.lobbyCountdown, nil
}

// StartPlayroom enters the playroom at round 1, pick 1. Next-round auto-pick
// flags are activated here as round 1 begins. The returned outcome has
// Completed set when no drafter can be resolved.
func (r *Room) StartPlayroom(now time.Time) (Outcome, error) {
	if r.phase != models.PhaseCountdown {
		return Outcome{}, ErrWrongPhase
	}
	r.phase = models.PhasePlayroom
	r.lobbyCountdown = 0
	r.round, r.pick = 1, 1
	r.metrics.StartedAt = &now

	activated := r.activateNextRound()
	out := r.resolveTurn(now)
	out.Activated = activated
	out.RoundChanged = true
	return out, nil
}

// StartTurn resets the per-turn countdown.
func (r *Room) StartTurn(ticks int) {
	r.turnCountdown = ticks
}

// TickTurn decrements the per-turn countdown and returns what is left.
func (r *Room) TickTurn() (int, error) {
	if r.phase != models.PhasePlayroom {
		return 0, ErrWrongPhase
	}
	if r.turnCountdown > 0 {
		r.turnCountdown--
	}
	return r.turnCountdown, nil
}

// ApplyPick validates and commits a pick for userID. A rejection leaves the
// room untouched apart from the rejection counter.
func (r *Room) ApplyPick(userID, itemID uuid.UUID, method models.PickMethod, now time.Time) (Outcome, error) {
	item, err := algorithm.ValidatePick(r.pickCheck(), userID, itemID)
	if err != nil {
		r.metrics.Rejections++
		return Outcome{}, err
	}
	return r.commit(item, method, now)
}

// AutoPick selects and commits an item for the current drafter. When nothing
// can be picked the room completes instead.
func (r *Room) AutoPick(method models.PickMethod, now time.Time) (Outcome, error) {
	if r.phase != models.PhasePlayroom || r.drafter == nil {
		return Outcome{}, algorithm.ErrDraftNotActive
	}
	item, ok := r.autoPickChoice()
	if !ok {
		r.Complete(now)
		return Outcome{Completed: true, TotalPicks: r.ledger.TotalPicks()}, nil
	}
	return r.commit(item, method, now)
}

// autoPickChoice reports what an automatic pick would choose right now.
func (r *Room) autoPickChoice() (models.Item, bool) {
	if r.drafter == nil {
		return models.Item{}, false
	}
	return algorithm.SelectAutoPick(r.index.Priorities(r.drafter.UserID), r.index, r.ledger)
}

func (r *Room) pickCheck() algorithm.PickCheck {
	return algorithm.PickCheck{
		Phase:   r.phase,
		Drafter: r.drafter,
		Pool:    r.index,
		Ledger:  r.ledger,
	}
}

func (r *Room) commit(item models.Item, method models.PickMethod, now time.Time) (Outcome, error) {
	rec := models.PickRecord{
		User:        r.drafter.User,
		Item:        item,
		TicketID:    r.drafter.ID,
		Round:       r.round,
		Pick:        r.pick,
		OverallPick: r.ledger.TotalPicks() + 1,
		Method:      method,
		PickedAt:    now,
	}
	if rec.User.ID == uuid.Nil {
		rec.User.ID = r.drafter.UserID
	}
	if err := r.ledger.Record(rec); err != nil {
		return Outcome{}, fmt.Errorf("commit pick: %w", err)
	}
	if !r.index.remove(item.ID) {
		return Outcome{}, fmt.Errorf("commit pick: item %s missing from index: %w", item.ID, ledger.ErrDuplicateItem)
	}

	switch method {
	case models.PickMethodManual:
		r.metrics.ManualPicks++
	case models.PickMethodAuto:
		r.metrics.AutoPicks++
	case models.PickMethodAFK:
		r.metrics.AFKPicks++
	}
	r.turnCountdown = 0

	if algorithm.IsComplete(r.ledger.TotalPicks(), r.index.CatalogSize()) {
		r.Complete(now)
		return Outcome{
			Record:     rec,
			Round:      r.round,
			Pick:       r.pick,
			Completed:  true,
			TotalPicks: r.ledger.TotalPicks(),
		}, nil
	}

	var changed bool
	r.round, r.pick, changed = algorithm.Advance(len(r.roster), r.round, r.pick)
	var activated []uuid.UUID
	if changed {
		activated = r.activateNextRound()
	}
	out := r.resolveTurn(now)
	out.Record = rec
	out.RoundChanged = changed
	out.Activated = activated
	return out, nil
}

// resolveTurn sets the drafter for the current counters, completing the room
// when none resolves.
func (r *Room) resolveTurn(now time.Time) Outcome {
	next, ok := algorithm.CurrentDrafter(r.roster, r.round, r.pick)
	if !ok || algorithm.IsComplete(r.ledger.TotalPicks(), r.index.CatalogSize()) {
		r.Complete(now)
		return Outcome{Round: r.round, Pick: r.pick, Completed: true, TotalPicks: r.ledger.TotalPicks()}
	}
	r.drafter = &next
	return Outcome{
		Drafter:    &next,
		Round:      r.round,
		Pick:       r.pick,
		TotalPicks: r.ledger.TotalPicks(),
		Remaining:  r.index.Remaining(),
	}
}

func (r *Room) activateNextRound() []uuid.UUID {
	if len(r.autoPickNext) == 0 {
		return nil
	}
	users := make([]uuid.UUID, 0, len(r.autoPickNext))
	for _, t := range r.roster {
		if r.autoPickNext[t.UserID] && !r.autoPickCurrent[t.UserID] {
			r.autoPickCurrent[t.UserID] = true
			users = append(users, t.UserID)
		}
	}
	r.autoPickNext = make(map[uuid.UUID]bool)
	return users
}

// SetAutoPick updates a user's auto-pick preference. Disabling clears both
// the current and queued flags.
func (r *Room) SetAutoPick(userID uuid.UUID, enabled bool, scope models.AutoPickScope) error {
	if r.phase == models.PhaseCompleted {
		return ErrWrongPhase
	}
	if !r.HasTicket(userID) {
		return ErrUnknownTicket
	}
	if !enabled {
		delete(r.autoPickCurrent, userID)
		delete(r.autoPickNext, userID)
		return nil
	}
	if scope == models.AutoPickScopeCurrent {
		r.autoPickCurrent[userID] = true
		return nil
	}
	r.autoPickNext[userID] = true
	return nil
}

func (r *Room) AutoPickEnabled(userID uuid.UUID) bool { return r.autoPickCurrent[userID] }
func (r *Room) AutoPickQueued(userID uuid.UUID) bool { return r.autoPickNext[userID] }

// ReplaceRoster swaps in a refreshed roster, keeping readiness of tickets
// that were already present.
func (r *Room) ReplaceRoster(tickets []models.Ticket) error {
	if err := r.inLobby(); err != nil {
		return err
	}
	status := make(map[uuid.UUID]models.TicketStatus, len(r.roster))
	for _, t := range r.roster {
		status[t.ID] = t.Status
	}
	next := make([]models.Ticket, len(tickets))
	for i, t := range tickets {
		if s, ok := status[t.ID]; ok {
			t.Status = s
		} else if t.Status == "" {
			t.Status = models.TicketStatusWaiting
		}
		t.QueueNumber = 0
		next[i] = t
	}
	r.roster = next
	return nil
}

// Complete moves the room to its terminal phase. It reports false when the
// room was already completed.
func (r *Room) Complete(now time.Time) bool {
	if r.phase == models.PhaseCompleted {
		return false
	}
	r.phase = models.PhaseCompleted
	r.shuffling = false
	r.drafter = nil
	r.lobbyCountdown = 0
	r.turnCountdown = 0
	r.metrics.CompletedAt = &now
	return true
}

// Summary aggregates the ledger per ticket.
func (r *Room) Summary(now time.Time) models.DraftSummary {
	byTicket := make(map[uuid.UUID]*models.TicketResult, len(r.roster))
	sum := models.DraftSummary{
		LotteryID:   r.lotteryID,
		TotalPicks:  r.ledger.TotalPicks(),
		CompletedAt: now,
	}
	for _, t := range r.roster {
		byTicket[t.ID] = &models.TicketResult{TicketID: t.ID, UserID: t.UserID}
	}
	for _, p := range r.ledger.Chronological() {
		tr, ok := byTicket[p.TicketID]
		if !ok {
			tr = &models.TicketResult{TicketID: p.TicketID, UserID: p.User.ID}
			byTicket[p.TicketID] = tr
		}
		tr.ItemIDs = append(tr.ItemIDs, p.Item.ID)
		tr.Rounds = append(tr.Rounds, p.Round)
		tr.TotalValue += p.Item.Value
		sum.TotalValue += p.Item.Value
		if p.Round > sum.TotalRounds {
			sum.TotalRounds = p.Round
		}
	}
	for _, t := range r.roster {
		sum.Tickets = append(sum.Tickets, *byTicket[t.ID])
	}
	return sum
}

// UpdatePriorities replaces the ranked lists for the given users.
func (r *Room) UpdatePriorities(prios map[uuid.UUID][]models.PriorityEntry) {
	for userID, entries := range prios {
		r.index.priorities[userID] = RankOrder(entries)
	}
}
