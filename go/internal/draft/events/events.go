// Package events defines the envelope broadcast to everyone watching a room.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of room event
type EventType string

const (
	EventTypePhaseChanged        EventType = "PhaseChanged"
	EventTypeRosterChanged       EventType = "RosterChanged"
	EventTypeLobbyCountdownTick  EventType = "LobbyCountdownTick"
	EventTypeShuffleStarted      EventType = "ShuffleStarted"
	EventTypeShuffleEnded        EventType = "ShuffleEnded"
	EventTypeTurnStarted         EventType = "TurnStarted"
	EventTypeTurnCountdownTick   EventType = "TurnCountdownTick"
	EventTypeItemPicked          EventType = "ItemPicked"
	EventTypeAutoPickPreference  EventType = "AutoPickPreferenceChanged"
	EventTypeParticipantsChanged EventType = "ParticipantsChanged"
	EventTypeDraftCompleted      EventType = "DraftCompleted"
	EventTypeRoomError           EventType = "RoomError"
	EventTypeRoomState           EventType = "RoomState"
)

// Event is the envelope for every outbound message
type Event struct {
	ID        string          `json:"id"`
	LotteryID uuid.UUID       `json:"lottery_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New marshals payload into an event envelope.
func New(lotteryID uuid.UUID, typ EventType, at time.Time, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return &Event{
		ID:        uuid.NewString(),
		LotteryID: lotteryID,
		Type:      typ,
		Timestamp: at,
		Data:      data,
	}, nil
}

// Decode parses the event data into the payload struct for its type.
func Decode(event *Event) (any, error) {
	var payload any
	switch event.Type {
	case EventTypePhaseChanged:
		payload = &PhaseChangedPayload{}
	case EventTypeRosterChanged:
		payload = &RosterChangedPayload{}
	case EventTypeLobbyCountdownTick, EventTypeTurnCountdownTick:
		payload = &CountdownTickPayload{}
	case EventTypeShuffleStarted, EventTypeShuffleEnded:
		payload = &ShufflePayload{}
	case EventTypeTurnStarted:
		payload = &TurnStartedPayload{}
	case EventTypeItemPicked:
		payload = &ItemPickedPayload{}
	case EventTypeAutoPickPreference:
		payload = &AutoPickPreferencePayload{}
	case EventTypeParticipantsChanged:
		payload = &ParticipantsChangedPayload{}
	case EventTypeDraftCompleted:
		payload = &DraftCompletedPayload{}
	case EventTypeRoomError:
		payload = &RoomErrorPayload{}
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
	if err := json.Unmarshal(event.Data, payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", event.Type, err)
	}
	return payload, nil
}
