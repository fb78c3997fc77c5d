package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partdraft/go/internal/draft/events"
	"github.com/mcdev12/partdraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/partdraft/go/internal/draft/room"
	"github.com/mcdev12/partdraft/go/internal/models"
)

// ErrMalformedMessage is returned for client frames that cannot be decoded.
var ErrMalformedMessage = errors.New("malformed client message")

// Rooms is the registry surface the gateway needs.
type Rooms interface {
	Join(ctx context.Context, lotteryID uuid.UUID, connID string, userID uuid.UUID) (*orchestrator.Session, room.Snapshot, error)
	Get(lotteryID uuid.UUID) (*orchestrator.Session, bool)
	Start(ctx context.Context, lotteryID uuid.UUID, force bool) error
	List() []*orchestrator.Session
	Len() int
}

// ClientAction names an inbound participant action
type ClientAction string

const (
	ActionSetReady        ClientAction = "set_ready"
	ActionStartDraft      ClientAction = "start_draft"
	ActionPickItem        ClientAction = "pick_item"
	ActionRequestAutoPick ClientAction = "request_auto_pick"
	ActionSetAutoPick     ClientAction = "set_auto_pick"
)

// ClientMessage is a frame sent by a participant
type ClientMessage struct {
	Action  ClientAction         `json:"action"`
	Ready   bool                 `json:"ready,omitempty"`
	Force   bool                 `json:"force,omitempty"`
	ItemID  uuid.UUID            `json:"item_id,omitempty"`
	Enabled bool                 `json:"enabled,omitempty"`
	Scope   models.AutoPickScope `json:"scope,omitempty"`
}

// Dispatcher turns client frames into session calls. Rejections go back to
// the sending connection only.
type Dispatcher struct {
	rooms  Rooms
	config ConnectionConfig
}

func NewDispatcher(rooms Rooms, config ConnectionConfig) *Dispatcher {
	return &Dispatcher{rooms: rooms, config: config}
}

// Join attaches a connection to its room and sends it the current state.
func (d *Dispatcher) Join(ctx context.Context, c *Connection) error {
	s, snap, err := d.rooms.Join(ctx, c.LotteryID, c.ID, c.UserID)
	if err != nil {
		d.sendError(c, "join", err, true)
		return err
	}
	if !c.setSession(s) {
		return s.Leave(ctx, c.ID)
	}

	ev, err := events.New(c.LotteryID, events.EventTypeRoomState, time.Now(), snap)
	if err != nil {
		return err
	}
	c.Manager.SendTo(c, ev)
	return nil
}

func (d *Dispatcher) Handle(c *Connection, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.sendError(c, "", ErrMalformedMessage, false)
		return
	}
	s := c.Session()
	if s == nil {
		d.sendError(c, string(msg.Action), orchestrator.ErrRoomClosed, false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.config.ActionTimeout)
	defer cancel()

	var err error
	switch msg.Action {
	case ActionSetReady:
		err = s.SetReady(ctx, c.UserID, msg.Ready)
	case ActionStartDraft:
		err = d.rooms.Start(ctx, c.LotteryID, msg.Force && d.config.AllowForceStart)
	case ActionPickItem:
		_, err = s.Pick(ctx, c.UserID, msg.ItemID)
	case ActionRequestAutoPick:
		_, err = s.RequestAutoPick(ctx, c.UserID)
	case ActionSetAutoPick:
		err = s.SetAutoPick(ctx, c.UserID, msg.Enabled, msg.Scope)
	default:
		err = ErrMalformedMessage
	}
	if err != nil {
		d.sendError(c, string(msg.Action), err, false)
	}
}

func (d *Dispatcher) sendError(c *Connection, action string, err error, fatal bool) {
	reason := orchestrator.RejectionReason(err)
	if errors.Is(err, ErrMalformedMessage) {
		reason = "Unrecognized message."
	}
	log.Debug().
		Err(err).
		Str("connection_id", c.ID).
		Str("action", action).
		Msg("client action rejected")

	ev, evErr := events.New(c.LotteryID, events.EventTypeRoomError, time.Now(), events.RoomErrorPayload{
		Reason: reason,
		Action: action,
		Fatal:  fatal,
	})
	if evErr != nil {
		log.Error().Err(evErr).Msg("failed to build rejection")
		return
	}
	c.Manager.SendTo(c, ev)
}
