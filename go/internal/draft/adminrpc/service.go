// Package adminrpc exposes operator controls for live draft rooms over
// connect with a JSON codec.
package adminrpc

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partdraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/partdraft/go/internal/draft/outbox"
	"github.com/mcdev12/partdraft/go/internal/draft/registry"
	"github.com/mcdev12/partdraft/go/internal/draft/room"
)

const ServiceName = "partdraft.admin.v1.AdminService"

const (
	GetRoomStateProcedure = "/" + ServiceName + "/GetRoomState"
	ListRoomsProcedure    = "/" + ServiceName + "/ListRooms"
	ForceStartProcedure   = "/" + ServiceName + "/ForceStart"
	GetStatsProcedure     = "/" + ServiceName + "/GetStats"
)

// Rooms is the registry surface the admin service needs
type Rooms interface {
	Get(lotteryID uuid.UUID) (*orchestrator.Session, bool)
	Start(ctx context.Context, lotteryID uuid.UUID, force bool) error
	List() []*orchestrator.Session
	Len() int
}

// ConnectionCounter reports the number of open sockets
type ConnectionCounter interface {
	ConnectionCount() int
}

// HealthReporter reports the persistence queue state
type HealthReporter interface {
	Health() outbox.HealthStatus
}

// AdminServiceHandler is implemented by Service
type AdminServiceHandler interface {
	GetRoomState(context.Context, *connect.Request[GetRoomStateRequest]) (*connect.Response[GetRoomStateResponse], error)
	ListRooms(context.Context, *connect.Request[ListRoomsRequest]) (*connect.Response[ListRoomsResponse], error)
	ForceStart(context.Context, *connect.Request[ForceStartRequest]) (*connect.Response[ForceStartResponse], error)
	GetStats(context.Context, *connect.Request[GetStatsRequest]) (*connect.Response[GetStatsResponse], error)
}

// Service implements the admin RPCs against the room registry
type Service struct {
	rooms  Rooms
	conns  ConnectionCounter
	health HealthReporter
}

// NewService creates the admin service. conns and health may be nil.
func NewService(rooms Rooms, conns ConnectionCounter, health HealthReporter) *Service {
	return &Service{
		rooms:  rooms,
		conns:  conns,
		health: health,
	}
}

var _ AdminServiceHandler = (*Service)(nil)

// NewAdminServiceHandler builds the HTTP handler and the path prefix to
// mount it under.
func NewAdminServiceHandler(svc AdminServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	mux := http.NewServeMux()
	mux.Handle(GetRoomStateProcedure, connect.NewUnaryHandler(GetRoomStateProcedure, svc.GetRoomState, opts...))
	mux.Handle(ListRoomsProcedure, connect.NewUnaryHandler(ListRoomsProcedure, svc.ListRooms, opts...))
	mux.Handle(ForceStartProcedure, connect.NewUnaryHandler(ForceStartProcedure, svc.ForceStart, opts...))
	mux.Handle(GetStatsProcedure, connect.NewUnaryHandler(GetStatsProcedure, svc.GetStats, opts...))
	return "/" + ServiceName + "/", mux
}

// GetRoomState returns the full snapshot of one room
func (s *Service) GetRoomState(ctx context.Context, req *connect.Request[GetRoomStateRequest]) (*connect.Response[GetRoomStateResponse], error) {
	sess, err := s.session(req.Msg.LotteryID)
	if err != nil {
		return nil, err
	}
	snap, err := sess.Snapshot(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetRoomStateResponse{Room: snap}), nil
}

// ListRooms lists every live room
func (s *Service) ListRooms(ctx context.Context, req *connect.Request[ListRoomsRequest]) (*connect.Response[ListRoomsResponse], error) {
	resp := &ListRoomsResponse{Rooms: []RoomInfo{}}
	for _, sess := range s.rooms.List() {
		snap, err := sess.Snapshot(ctx)
		if err != nil {
			continue
		}
		resp.Rooms = append(resp.Rooms, RoomInfo{
			LotteryID:    snap.LotteryID,
			Phase:        snap.Phase,
			Round:        snap.Round,
			Pick:         snap.Pick,
			Tickets:      len(snap.Roster),
			Participants: snap.Participants,
			Remaining:    len(snap.AvailableItems),
		})
	}
	return connect.NewResponse(resp), nil
}

// ForceStart starts a lobby without waiting for readiness
func (s *Service) ForceStart(ctx context.Context, req *connect.Request[ForceStartRequest]) (*connect.Response[ForceStartResponse], error) {
	if req.Msg.LotteryID == uuid.Nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("lottery_id is required"))
	}
	if err := s.rooms.Start(ctx, req.Msg.LotteryID, true); err != nil {
		return nil, toConnectError(err)
	}
	log.Info().Str("lottery_id", req.Msg.LotteryID.String()).Msg("draft force-started by operator")

	sess, err := s.session(req.Msg.LotteryID)
	if err != nil {
		return nil, err
	}
	snap, err := sess.Snapshot(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ForceStartResponse{Phase: snap.Phase}), nil
}

// GetStats reports registry, connection, outbox and per-room counters
func (s *Service) GetStats(ctx context.Context, req *connect.Request[GetStatsRequest]) (*connect.Response[GetStatsResponse], error) {
	resp := &GetStatsResponse{Rooms: s.rooms.Len(), PerRoom: []RoomStats{}}
	if s.conns != nil {
		resp.Connections = s.conns.ConnectionCount()
	}
	if s.health != nil {
		h := s.health.Health()
		resp.Outbox = &h
	}
	for _, sess := range s.rooms.List() {
		snap, err := sess.Snapshot(ctx)
		if err != nil {
			continue
		}
		resp.PerRoom = append(resp.PerRoom, RoomStats{
			LotteryID: snap.LotteryID,
			Phase:     snap.Phase,
			Metrics:   snap.Metrics,
			Broadcast: sess.BroadcastStats(),
		})
	}
	return connect.NewResponse(resp), nil
}

func (s *Service) session(lotteryID uuid.UUID) (*orchestrator.Session, error) {
	if lotteryID == uuid.Nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("lottery_id is required"))
	}
	sess, ok := s.rooms.Get(lotteryID)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, registry.ErrRoomNotFound)
	}
	return sess, nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, registry.ErrRoomNotFound), errors.Is(err, orchestrator.ErrRoomClosed):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, orchestrator.ErrUnavailable), errors.Is(err, registry.ErrClosed):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, room.ErrWrongPhase),
		errors.Is(err, room.ErrAlreadyStarted),
		errors.Is(err, room.ErrShuffling),
		errors.Is(err, room.ErrEmptyRoster),
		errors.Is(err, room.ErrNotReady):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
