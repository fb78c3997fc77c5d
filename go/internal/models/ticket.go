package models

import (
	"github.com/google/uuid"
)

// TicketStatus is the lobby readiness of a ticket.
type TicketStatus string

const (
	TicketStatusWaiting TicketStatus = "WAITING"
	TicketStatusReady   TicketStatus = "READY"
)

// Ticket is one drafting slot in a lottery.
type Ticket struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	User        UserInfo     `json:"user"`
	Status      TicketStatus `json:"status"`
	QueueNumber int          `json:"queue_number"` // 0 until shuffled
	PurchaseID  uuid.UUID    `json:"purchase_id"`
}
