package orchestrator

import (
	"errors"

	"github.com/mcdev12/partdraft/go/internal/draft/algorithm"
	"github.com/mcdev12/partdraft/go/internal/draft/room"
)

var (
	ErrRoomClosed = errors.New("room is closed")
	// ErrUnavailable marks a collaborator failure surfaced to a participant.
	ErrUnavailable = errors.New("room data is unavailable")
)

// RejectionReason turns an error into the message shown to the participant
// who caused it. Unknown errors never leak their text.
func RejectionReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, algorithm.ErrNotYourTurn):
		return "It is not your turn to pick."
	case errors.Is(err, algorithm.ErrDraftNotActive):
		return "The draft is not active."
	case errors.Is(err, algorithm.ErrItemUnavailable):
		return "That item is no longer available."
	case errors.Is(err, room.ErrNotReady):
		return "Not every participant is ready yet."
	case errors.Is(err, room.ErrUnknownTicket):
		return "You do not hold a ticket in this lottery."
	case errors.Is(err, room.ErrEmptyRoster):
		return "This lottery has no tickets."
	case errors.Is(err, room.ErrShuffling):
		return "The roster is being shuffled."
	case errors.Is(err, room.ErrAlreadyStarted):
		return "The draft has already started."
	case errors.Is(err, room.ErrWrongPhase):
		return "That action is not available right now."
	case errors.Is(err, ErrRoomClosed):
		return "This room has closed."
	default:
		return "The room is not ready yet. Please wait and try again."
	}
}
