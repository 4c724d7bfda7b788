package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-mini/internal/domain"
)

// UserRefResponse is the display form of a user identity.
type UserRefResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	SLADeadline time.Time             `json:"slaDeadline"`
	AssignedTo  *string               `json:"assignedTo"`
}

// UpdateTicketRequest payload. Version is required; every other field is
// optional and only the listed fields can be changed.
type UpdateTicketRequest struct {
	Version     *int                   `json:"version"`
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Priority    *domain.TicketPriority `json:"priority"`
	Status      *domain.TicketStatus   `json:"status"`
	SLADeadline *time.Time             `json:"slaDeadline"`
	AssignedTo  *string                `json:"assignedTo"`
}

// TicketSummary response.
type TicketSummary struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
	SLADeadline time.Time             `json:"slaDeadline"`
	CreatedBy   UserRefResponse       `json:"createdBy"`
	AssignedTo  *UserRefResponse      `json:"assignedTo,omitempty"`
	Version     int                   `json:"version"`
	Breached    bool                  `json:"breached"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// TicketListResponse wraps a page of tickets. Total is the role-scoped
// count, independent of search.
type TicketListResponse struct {
	Total   int             `json:"total"`
	Tickets []TicketSummary `json:"tickets"`
}

// TimelineEntryResponse is one audit entry with its actor resolved.
type TimelineEntryResponse struct {
	Action      string          `json:"action"`
	User        UserRefResponse `json:"user"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// TicketDetailResponse provides full ticket info including the timeline and
// the nested comment forest.
type TicketDetailResponse struct {
	TicketSummary
	Timeline []TimelineEntryResponse `json:"timeline"`
	Comments []CommentNodeResponse   `json:"comments"`
}
