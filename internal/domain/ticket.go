package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets. No transition graph
// is enforced: any status may change to any other via a versioned update.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusResolved   TicketStatus = "Resolved"
	TicketStatusClosed     TicketStatus = "Closed"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
)

// ValidStatus reports whether s is a known ticket status.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known ticket priority.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. Version is the optimistic
// locking counter: it starts at 0 and increments by exactly 1 on every
// successful update. Timeline is append-only and owned by the ticket.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Priority    TicketPriority
	Status      TicketStatus
	SLADeadline time.Time
	CreatedBy   string
	AssignedTo  *string
	Version     int
	Timeline    []TimelineEntry
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TimelineEntry is an immutable audit record on a ticket's history.
// Entries are never edited or removed once appended.
type TimelineEntry struct {
	ID          string
	TicketID    string
	Action      string
	UserID      string
	Description string
	CreatedAt   time.Time
}
