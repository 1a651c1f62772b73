package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen              TicketStatus = "OPEN"
	TicketStatusAssigned          TicketStatus = "ASSIGNED"
	TicketStatusInProgress        TicketStatus = "IN_PROGRESS"
	TicketStatusWaitingOnCustomer TicketStatus = "WAITING_ON_CUSTOMER"
	TicketStatusResolved          TicketStatus = "RESOLVED"
	TicketStatusClosed            TicketStatus = "CLOSED"
)

// ActiveTicketStatuses are the statuses that count toward an agent's load.
// RESOLVED and CLOSED are excluded; everything else keeps the agent busy.
var ActiveTicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusAssigned,
	TicketStatusInProgress,
	TicketStatusWaitingOnCustomer,
}

// Valid reports whether s is a known ticket status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress,
		TicketStatusWaitingOnCustomer, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Active reports whether the status counts toward agent load.
func (s TicketStatus) Active() bool {
	for _, active := range ActiveTicketStatuses {
		if s == active {
			return true
		}
	}
	return false
}

// TicketStatusValues lists all valid statuses, for validation messages.
func TicketStatusValues() []string {
	return []string{
		string(TicketStatusOpen),
		string(TicketStatusAssigned),
		string(TicketStatusInProgress),
		string(TicketStatusWaitingOnCustomer),
		string(TicketStatusResolved),
		string(TicketStatusClosed),
	}
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
//
// CustomerID is nullable: deleting a customer account orphans the ticket
// rather than cascading. ClosedAt is stamped when the ticket enters CLOSED
// and is never cleared afterwards, even if the ticket later moves back to a
// non-terminal status.
type Ticket struct {
	ID              int64
	CustomerID      *int64
	AssignedAgentID *int64
	Subject         string
	Description     string
	Status          TicketStatus
	Priority        TicketPriority
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastMessageAt   *time.Time
	ClosedAt        *time.Time
}

// TicketVolumePoint is one day's created-ticket count in a volume series.
type TicketVolumePoint struct {
	Day   time.Time
	Count int
}

// ResolutionStats aggregates tickets that have been closed at least once.
// AvgResolutionSeconds is nil when no ticket has a closed_at yet.
type ResolutionStats struct {
	ResolvedCount        int
	AvgResolutionSeconds *int64
}
