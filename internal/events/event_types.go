package events

import (
	"time"

	"github.com/deskhub/support-service/internal/domain"
)

// EventType enumerates realtime event identifiers.
type EventType string

const (
	EventTicketAssigned       EventType = "ticket.assigned"
	EventTicketStatusChanged  EventType = "ticket.status_changed"
	EventTicketMessageCreated EventType = "ticket.message_created"
)

// Event is the payload pushed to live subscribers of a ticket channel.
// Fields beyond Type and TicketID are populated per event kind.
type Event struct {
	ID              string              `json:"id"`
	Type            EventType           `json:"type"`
	TicketID        int64               `json:"ticket_id"`
	AssignedAgentID *int64              `json:"assigned_agent,omitempty"`
	Status          domain.TicketStatus `json:"status,omitempty"`
	Message         *MessagePayload     `json:"message,omitempty"`
	Timestamp       time.Time           `json:"timestamp"`
}

// MessagePayload carries the delta for ticket.message_created.
type MessagePayload struct {
	MessageID  int64     `json:"id"`
	AuthorID   *int64    `json:"author,omitempty"`
	Body       string    `json:"body"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}
