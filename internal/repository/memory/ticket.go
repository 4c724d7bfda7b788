// Package memory provides in-memory implementations of the repository
// interfaces. They back the test suites and serve as a fallback when no
// POSTGRES_DSN is configured. All methods copy data in and out so callers
// can never alias the stored records.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk-mini/internal/domain"
	"github.com/spec-kit/helpdesk-mini/internal/repository"
)

// TicketRepository is a mutex-guarded map store. The versioned update is the
// compare-and-swap evaluated under the store lock, mirroring the conditional
// UPDATE of the Postgres implementation.
type TicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	order   []string
}

// NewTicketRepository builds an empty store.
func NewTicketRepository() *TicketRepository {
	return &TicketRepository{tickets: make(map[string]*domain.Ticket)}
}

func copyTicket(t *domain.Ticket) *domain.Ticket {
	copied := *t
	if t.AssignedTo != nil {
		assignee := *t.AssignedTo
		copied.AssignedTo = &assignee
	}
	if t.Timeline != nil {
		copied.Timeline = make([]domain.TimelineEntry, len(t.Timeline))
		copy(copied.Timeline, t.Timeline)
	}
	return &copied
}

func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	r.tickets[ticket.ID] = copyTicket(ticket)
	r.order = append(r.order, ticket.ID)
	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ticket, ok := r.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyTicket(ticket), nil
}

func (r *TicketRepository) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var matched []domain.Ticket
	// Insertion order is creation order; walk backwards for createdAt desc.
	for i := len(r.order) - 1; i >= 0; i-- {
		ticket := r.tickets[r.order[i]]
		if !matchesFilter(ticket, filter) {
			continue
		}
		matched = append(matched, *copyTicket(ticket))
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *TicketRepository) ListByIDs(ctx context.Context, ids []string, createdBy *string) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var result []domain.Ticket
	for i := len(r.order) - 1; i >= 0; i-- {
		ticket := r.tickets[r.order[i]]
		if _, ok := wanted[ticket.ID]; !ok {
			continue
		}
		if createdBy != nil && ticket.CreatedBy != *createdBy {
			continue
		}
		result = append(result, *copyTicket(ticket))
	}
	return result, nil
}

func (r *TicketRepository) Count(ctx context.Context, createdBy *string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if createdBy == nil {
		return len(r.tickets), nil
	}
	count := 0
	for _, ticket := range r.tickets {
		if ticket.CreatedBy == *createdBy {
			count++
		}
	}
	return count, nil
}

func (r *TicketRepository) UpdateVersioned(ctx context.Context, ticket *domain.Ticket, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}

	stored.Title = ticket.Title
	stored.Description = ticket.Description
	stored.Priority = ticket.Priority
	stored.Status = ticket.Status
	stored.SLADeadline = ticket.SLADeadline
	if ticket.AssignedTo != nil {
		assignee := *ticket.AssignedTo
		stored.AssignedTo = &assignee
	} else {
		stored.AssignedTo = nil
	}
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = time.Now().UTC()

	ticket.Version = stored.Version
	ticket.UpdatedAt = stored.UpdatedAt
	return nil
}

func matchesFilter(ticket *domain.Ticket, filter repository.TicketFilter) bool {
	if filter.CreatedBy != nil && ticket.CreatedBy != *filter.CreatedBy {
		return false
	}
	if filter.Search != nil {
		search := strings.ToLower(strings.TrimSpace(*filter.Search))
		if search != "" {
			title := strings.ToLower(ticket.Title)
			description := strings.ToLower(ticket.Description)
			if !strings.Contains(title, search) && !strings.Contains(description, search) {
				return false
			}
		}
	}
	return true
}
