package events

import (
	"time"

	"github.com/spec-kit/helpdesk-mini/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated EventType = "ticket_created"
	EventTicketUpdated EventType = "ticket_updated"
	EventCommentAdded  EventType = "comment_added"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title       string                `json:"title"`
	Priority    domain.TicketPriority `json:"priority"`
	SLADeadline time.Time             `json:"sla_deadline"`
	AssignedTo  *string               `json:"assigned_to,omitempty"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Version       int      `json:"version"`
	ChangedFields []string `json:"changed_fields"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID      string  `json:"comment_id"`
	ParentID       *string `json:"parent_id,omitempty"`
	ContentPreview string  `json:"content_preview"`
}
