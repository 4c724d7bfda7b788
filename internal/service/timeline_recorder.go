package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-mini/internal/domain"
	"github.com/spec-kit/helpdesk-mini/internal/repository"
)

// TimelineRecorder appends immutable audit entries to a ticket's history.
// It is invoked synchronously as part of every mutating ticket or comment
// operation; a failed append propagates to the caller as a storage error.
type TimelineRecorder struct {
	timeline repository.TimelineRepository
}

// NewTimelineRecorder constructs the recorder.
func NewTimelineRecorder(timeline repository.TimelineRepository) *TimelineRecorder {
	return &TimelineRecorder{timeline: timeline}
}

// Record appends one entry with the given action, actor and description.
func (r *TimelineRecorder) Record(ctx context.Context, ticketID, action, actorID, description string) (*domain.TimelineEntry, error) {
	entry := &domain.TimelineEntry{
		ID:          uuid.NewString(),
		TicketID:    ticketID,
		Action:      action,
		UserID:      actorID,
		Description: description,
	}
	if err := r.timeline.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListByTicket returns a ticket's full history in append order.
func (r *TimelineRecorder) ListByTicket(ctx context.Context, ticketID string) ([]domain.TimelineEntry, error) {
	return r.timeline.ListByTicket(ctx, ticketID)
}
