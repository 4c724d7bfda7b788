package memory

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk-mini/internal/domain"
)

// TimelineRepository keeps per-ticket audit entries in append order.
type TimelineRepository struct {
	mu      sync.RWMutex
	entries map[string][]domain.TimelineEntry
}

// NewTimelineRepository builds an empty store.
func NewTimelineRepository() *TimelineRepository {
	return &TimelineRepository{entries: make(map[string][]domain.TimelineEntry)}
}

func (r *TimelineRepository) Append(ctx context.Context, entry *domain.TimelineEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.CreatedAt = time.Now().UTC()
	r.entries[entry.TicketID] = append(r.entries[entry.TicketID], *entry)
	return nil
}

func (r *TimelineRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TimelineEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.entries[ticketID]
	result := make([]domain.TimelineEntry, len(stored))
	copy(result, stored)
	return result, nil
}
