package orchestrator

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partdraft/go/internal/draft/algorithm"
	"github.com/mcdev12/partdraft/go/internal/draft/events"
	"github.com/mcdev12/partdraft/go/internal/draft/ledger"
	"github.com/mcdev12/partdraft/go/internal/draft/room"
	"github.com/mcdev12/partdraft/go/internal/models"
)

const faultReason = "The draft hit an internal error and has been closed."

func (s *Session) handleJoin(env envelope, m joinMsg) {
	s.room.Join(m.connID, m.userID)
	s.coalesce(events.EventTypeParticipantsChanged, events.ParticipantsChangedPayload{
		Count: s.room.ParticipantCount(),
	})
	env.respond(reply{snapshot: s.room.Snapshot()})
}

func (s *Session) handleLeave(env envelope, m leaveMsg) {
	if s.room.Leave(m.connID) {
		s.coalesce(events.EventTypeParticipantsChanged, events.ParticipantsChangedPayload{
			Count: s.room.ParticipantCount(),
		})
	}
	env.respond(reply{})
}

func (s *Session) handleReady(env envelope, m readyMsg) {
	if err := s.room.SetReady(m.userID, m.ready); err != nil {
		s.reject(env, "set ready", m.userID, err)
		return
	}
	s.coalesce(events.EventTypeRosterChanged, events.RosterChangedPayload{Roster: s.room.Roster()})
	env.respond(reply{})
}

func (s *Session) handleRoster(env envelope, m rosterMsg) {
	if err := s.room.ReplaceRoster(m.tickets); err != nil {
		env.respond(reply{err: err})
		return
	}
	s.room.UpdatePriorities(m.priorities)
	s.immediate(events.EventTypeRosterChanged, events.RosterChangedPayload{Roster: s.room.Roster()})
	log.Info().
		Str("lottery_id", s.id.String()).
		Int("tickets", len(m.tickets)).
		Msg("roster refreshed")
	env.respond(reply{})
}

func (s *Session) handleStart(env envelope, m startMsg) {
	if err := s.room.BeginShuffle(m.force, s.shuffler); err != nil {
		s.reject(env, "start", uuid.Nil, err)
		return
	}
	s.immediate(events.EventTypeShuffleStarted, events.ShufflePayload{
		Roster:     s.room.Roster(),
		DisplayFor: s.config.ShuffleDisplay.String(),
	})
	s.timers.arm(timerShuffle, s.config.ShuffleDisplay, s.post)

	log.Info().
		Str("lottery_id", s.id.String()).
		Bool("forced", m.force).
		Msg("roster shuffled")
	env.respond(reply{})
}

func (s *Session) handlePick(env envelope, m pickMsg) {
	out, err := s.room.ApplyPick(m.userID, m.itemID, models.PickMethodManual, s.clock.Now())
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateItem) {
			env.respond(reply{err: err})
			s.fault(err)
			return
		}
		s.reject(env, "pick", m.userID, err)
		return
	}
	// The picker is acknowledged before anything is handed to persistence.
	env.respond(reply{pick: out.Record})
	s.afterPick(out)
}

func (s *Session) handleAutoPickRequest(env envelope, m autoPickMsg) {
	if s.room.Phase() != models.PhasePlayroom {
		s.reject(env, "auto pick", m.userID, algorithm.ErrDraftNotActive)
		return
	}
	if d, ok := s.room.Drafter(); !ok || d.UserID != m.userID {
		s.reject(env, "auto pick", m.userID, algorithm.ErrNotYourTurn)
		return
	}
	out, err := s.room.AutoPick(models.PickMethodAuto, s.clock.Now())
	if err != nil {
		env.respond(reply{err: err})
		if errors.Is(err, ledger.ErrDuplicateItem) {
			s.fault(err)
		}
		return
	}
	if out.Completed && out.Record.Item.ID == uuid.Nil {
		env.respond(reply{err: algorithm.ErrItemUnavailable})
		s.finish(false)
		return
	}
	env.respond(reply{pick: out.Record})
	s.afterPick(out)
}

func (s *Session) handlePreference(env envelope, m preferenceMsg) {
	scope := m.scope
	if scope == "" {
		scope = models.AutoPickScopeNext
	}
	if err := s.room.SetAutoPick(m.userID, m.enabled, scope); err != nil {
		s.reject(env, "auto pick preference", m.userID, err)
		return
	}
	active := s.room.AutoPickEnabled(m.userID)
	s.immediate(events.EventTypeAutoPickPreference, events.AutoPickPreferencePayload{
		UserID:  m.userID,
		Enabled: m.enabled,
		Scope:   scope,
		Active:  active,
	})

	if d, ok := s.room.Drafter(); ok && d.UserID == m.userID && s.room.Phase() == models.PhasePlayroom {
		switch {
		case active && !s.timers.armed(timerGrace):
			s.timers.arm(timerGrace, s.config.AutoPickGrace, s.post)
		case !active:
			s.timers.cancel(timerGrace)
		}
	}
	env.respond(reply{})
}

func (s *Session) handleTimer(f timerFired) {
	if !s.timers.accept(f) {
		log.Debug().
			Str("lottery_id", s.id.String()).
			Str("timer", f.kind.String()).
			Msg("dropping stale timer fire")
		return
	}

	switch f.kind {
	case timerShuffle:
		s.endShuffle()
	case timerLobbyTick:
		s.lobbyTick()
	case timerTurnTick:
		s.turnTick()
	case timerGrace:
		s.autoPick(models.PickMethodAuto)
	case timerRetire:
		log.Info().Str("lottery_id", s.id.String()).Msg("retention window elapsed, retiring room")
		if s.onRetire != nil {
			s.onRetire(s.id, s)
		}
		s.retired = true
	}
}

func (s *Session) endShuffle() {
	if err := s.room.BeginCountdown(s.config.LobbyCountdownTicks); err != nil {
		log.Warn().Err(err).Str("lottery_id", s.id.String()).Msg("shuffle timer fired outside shuffle")
		return
	}
	s.immediate(events.EventTypeShuffleEnded, events.ShufflePayload{Roster: s.room.Roster()})
	s.announcePhase()

	if s.config.LobbyCountdownTicks <= 0 {
		s.startPlayroom()
		return
	}
	s.coalesce(events.EventTypeLobbyCountdownTick, events.CountdownTickPayload{
		Remaining: s.room.LobbyCountdown(),
	})
	s.timers.arm(timerLobbyTick, s.config.TickInterval, s.post)
}

func (s *Session) lobbyTick() {
	remaining, err := s.room.TickLobby()
	if err != nil {
		return
	}
	s.coalesce(events.EventTypeLobbyCountdownTick, events.CountdownTickPayload{Remaining: remaining})
	if remaining > 0 {
		s.timers.arm(timerLobbyTick, s.config.TickInterval, s.post)
		return
	}
	s.startPlayroom()
}

func (s *Session) startPlayroom() {
	now := s.clock.Now()
	out, err := s.room.StartPlayroom(now)
	if err != nil {
		log.Warn().Err(err).Str("lottery_id", s.id.String()).Msg("could not start playroom")
		return
	}
	s.announcePhase()
	s.sink.InitResult(s.id, s.room.Roster(), now)
	s.announceActivated(out.Activated)

	if out.Completed {
		s.finish(false)
		return
	}
	s.beginTurn(*out.Drafter)
}

func (s *Session) beginTurn(drafter models.Ticket) {
	now := s.clock.Now()
	s.room.StartTurn(s.config.TurnTicks)
	s.timers.arm(timerTurnTick, s.config.TickInterval, s.post)

	pending := s.room.AutoPickEnabled(drafter.UserID)
	if pending {
		s.timers.arm(timerGrace, s.config.AutoPickGrace, s.post)
	} else {
		s.timers.cancel(timerGrace)
	}

	s.immediate(events.EventTypeTurnStarted, events.TurnStartedPayload{
		Drafter:         drafter,
		Round:           s.room.Round(),
		Pick:            s.room.Pick(),
		StartedAt:       now,
		TimeoutAt:       now.Add(s.config.TickInterval * time.Duration(s.config.TurnTicks)),
		AutoPickPending: pending,
	})
	log.Debug().
		Str("lottery_id", s.id.String()).
		Str("ticket_id", drafter.ID.String()).
		Int("round", s.room.Round()).
		Int("pick", s.room.Pick()).
		Bool("auto_pick", pending).
		Msg("turn started")
}

func (s *Session) turnTick() {
	remaining, err := s.room.TickTurn()
	if err != nil {
		return
	}
	tick := events.CountdownTickPayload{
		Remaining: remaining,
		Round:     s.room.Round(),
		Pick:      s.room.Pick(),
	}
	if d, ok := s.room.Drafter(); ok {
		tick.TicketID = &d.ID
	}
	s.coalesce(events.EventTypeTurnCountdownTick, tick)

	if remaining > 0 {
		s.timers.arm(timerTurnTick, s.config.TickInterval, s.post)
		return
	}
	s.autoPick(models.PickMethodAFK)
}

func (s *Session) autoPick(method models.PickMethod) {
	out, err := s.room.AutoPick(method, s.clock.Now())
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateItem) {
			s.fault(err)
			return
		}
		log.Warn().Err(err).Str("lottery_id", s.id.String()).Str("method", string(method)).Msg("auto pick skipped")
		return
	}
	if out.Completed && out.Record.Item.ID == uuid.Nil {
		s.finish(false)
		return
	}
	s.afterPick(out)
}

// afterPick runs every consequence of a committed pick.
func (s *Session) afterPick(out room.Outcome) {
	s.timers.cancel(timerTurnTick)
	s.timers.cancel(timerGrace)

	idx := s.room.Index()
	if idx.Remaining()+s.room.Ledger().TotalPicks() != idx.CatalogSize() {
		s.fault(errors.New("available items and ledger are out of step"))
		return
	}

	log.Info().
		Str("lottery_id", s.id.String()).
		Str("item_id", out.Record.Item.ID.String()).
		Str("ticket_id", out.Record.TicketID.String()).
		Str("method", string(out.Record.Method)).
		Int("round", out.Record.Round).
		Int("pick", out.Record.Pick).
		Msg("pick committed")

	s.immediate(events.EventTypeItemPicked, events.ItemPickedPayload{
		Pick:        out.Record,
		NextDrafter: out.Drafter,
		Round:       out.Round,
		PickNumber:  out.Pick,
		TotalPicks:  out.TotalPicks,
		Remaining:   idx.Remaining(),
	})
	s.sink.AppendPick(s.id, out.Record)
	s.announceActivated(out.Activated)

	if out.Completed {
		s.finish(false)
		return
	}
	s.beginTurn(*out.Drafter)
}

func (s *Session) announceActivated(users []uuid.UUID) {
	for _, userID := range users {
		s.immediate(events.EventTypeAutoPickPreference, events.AutoPickPreferencePayload{
			UserID:  userID,
			Enabled: true,
			Scope:   models.AutoPickScopeNext,
			Active:  true,
		})
	}
}

// finish completes the room. It runs at most once per session.
func (s *Session) finish(forced bool) {
	if s.finished {
		return
	}
	s.finished = true
	s.timers.cancelAll()

	now := s.clock.Now()
	s.room.Complete(now)
	summary := s.room.Summary(now)
	s.sink.FinalizeResult(summary)

	var duration time.Duration
	if started := s.room.Metrics().StartedAt; started != nil {
		duration = now.Sub(*started)
	}
	s.announcePhase()
	s.immediate(events.EventTypeDraftCompleted, events.DraftCompletedPayload{
		LotteryID:   s.id,
		CompletedAt: now,
		Duration:    duration.String(),
		TotalPicks:  summary.TotalPicks,
		Summary:     summary,
		Forced:      forced,
	})
	s.timers.arm(timerRetire, s.config.Retention, s.post)

	log.Info().
		Str("lottery_id", s.id.String()).
		Int("total_picks", summary.TotalPicks).
		Bool("forced", forced).
		Dur("duration", duration).
		Msg("draft completed")
}

// fault ends a room whose in-memory state can no longer be trusted.
func (s *Session) fault(err error) {
	log.Error().Err(err).Str("lottery_id", s.id.String()).Msg("draft invariant violated, closing room")
	s.immediate(events.EventTypeRoomError, events.RoomErrorPayload{Reason: faultReason, Fatal: true})
	s.finish(true)
}

// reject reports a failed action to its sender only.
func (s *Session) reject(env envelope, action string, userID uuid.UUID, err error) {
	log.Debug().
		Err(err).
		Str("lottery_id", s.id.String()).
		Str("user_id", userID.String()).
		Str("action", action).
		Msg("action rejected")
	env.respond(reply{err: err})
}
