package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk-mini/internal/domain"
	"github.com/spec-kit/helpdesk-mini/internal/repository"
)

// CommentRepository stores flat comments in creation order.
type CommentRepository struct {
	mu       sync.RWMutex
	comments map[string]*domain.Comment
	order    []string
}

// NewCommentRepository builds an empty store.
func NewCommentRepository() *CommentRepository {
	return &CommentRepository{comments: make(map[string]*domain.Comment)}
}

func copyComment(c *domain.Comment) *domain.Comment {
	copied := *c
	if c.ParentID != nil {
		parent := *c.ParentID
		copied.ParentID = &parent
	}
	return &copied
}

func (r *CommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	comment.CreatedAt = time.Now().UTC()
	r.comments[comment.ID] = copyComment(comment)
	r.order = append(r.order, comment.ID)
	return nil
}

func (r *CommentRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	comment, ok := r.comments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyComment(comment), nil
}

func (r *CommentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Comment
	for _, id := range r.order {
		comment := r.comments[id]
		if comment.TicketID != ticketID {
			continue
		}
		result = append(result, *copyComment(comment))
	}
	return result, nil
}

func (r *CommentRepository) TicketIDsMatching(ctx context.Context, search string) ([]string, error) {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, id := range r.order {
		comment := r.comments[id]
		if !strings.Contains(strings.ToLower(comment.Content), search) {
			continue
		}
		if _, dup := seen[comment.TicketID]; dup {
			continue
		}
		seen[comment.TicketID] = struct{}{}
		ids = append(ids, comment.TicketID)
	}
	return ids, nil
}
