package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-mini/internal/domain"
	"github.com/spec-kit/helpdesk-mini/internal/events"
	"github.com/spec-kit/helpdesk-mini/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-mini/pkg/util"
)

// CommentService persists flat comments and assembles them into reply trees.
type CommentService struct {
	comments   repository.CommentRepository
	tickets    repository.TicketRepository
	users      repository.UserRepository
	recorder   *TimelineRecorder
	dispatcher events.Dispatcher
}

// CommentDependencies bundles requirements for the comment service.
type CommentDependencies struct {
	CommentRepo repository.CommentRepository
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	Recorder    *TimelineRecorder
	Dispatcher  events.Dispatcher
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	return &CommentService{
		comments:   deps.CommentRepo,
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		recorder:   deps.Recorder,
		dispatcher: deps.Dispatcher,
	}
}

// CommentView is a flat comment with its author and, for replies, a preview
// of the parent's content.
type CommentView struct {
	domain.Comment
	Author        domain.UserRef
	ParentPreview *string
}

// Add persists a comment on a ticket and records the timeline event. The
// ticket must exist: a comment against a missing ticket fails with not-found
// before anything is persisted. A parent reference must name an existing
// comment on the same ticket.
func (s *CommentService) Add(ctx context.Context, authorID, ticketID, content string, parentID *string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content is required", map[string]any{"field": "content"})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, err
	}

	if parentID != nil {
		parent, err := s.comments.GetByID(ctx, *parentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFound("parent comment", map[string]any{"id": *parentID})
			}
			return nil, err
		}
		if parent.TicketID != ticket.ID {
			return nil, apperrors.NewNotFound("parent comment", map[string]any{"id": *parentID})
		}
	}

	comment := &domain.Comment{
		ID:       uuid.NewString(),
		TicketID: ticket.ID,
		UserID:   authorID,
		ParentID: parentID,
		Content:  content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Comment: %q", contentPreview(content, 120))
	if parentID != nil {
		description += fmt.Sprintf(" (Reply to %s)", *parentID)
	}
	if _, err := s.recorder.Record(ctx, ticket.ID, "Comment added", authorID, description); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: ticket.ID,
		ActorID:  authorID,
		Payload: events.CommentAddedPayload{
			CommentID:      comment.ID,
			ParentID:       parentID,
			ContentPreview: contentPreview(content, 120),
		},
	})
	return comment, nil
}

// List returns a ticket's comments in creation order with author identities
// and parent content previews resolved.
func (s *CommentService) List(ctx context.Context, ticketID string) ([]CommentView, error) {
	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	contentByID := make(map[string]string, len(comments))
	userIDs := make([]string, 0, len(comments))
	for _, comment := range comments {
		contentByID[comment.ID] = comment.Content
		userIDs = append(userIDs, comment.UserID)
	}
	authors, err := s.users.ListByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	views := make([]CommentView, 0, len(comments))
	for _, comment := range comments {
		view := CommentView{Comment: comment}
		if author, ok := authors[comment.UserID]; ok {
			view.Author = author.Ref()
		} else {
			view.Author = domain.UserRef{ID: comment.UserID}
		}
		if comment.ParentID != nil {
			if parentContent, ok := contentByID[*comment.ParentID]; ok {
				preview := contentPreview(parentContent, 120)
				view.ParentPreview = &preview
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// BuildThread groups flat comments into a forest. Top-level comments become
// roots; each reply attaches under its parent, preserving the creation-time
// order of the input. A comment whose parent is absent from the input is
// kept as a root rather than dropped. The build is iterative over an
// id-to-node map, so arbitrarily deep reply chains cannot exhaust the stack.
func BuildThread(comments []domain.Comment, authors map[string]domain.UserRef) []*domain.CommentNode {
	nodes := make(map[string]*domain.CommentNode, len(comments))
	for _, comment := range comments {
		node := &domain.CommentNode{Comment: comment}
		if author, ok := authors[comment.UserID]; ok {
			node.Author = author
		} else {
			node.Author = domain.UserRef{ID: comment.UserID}
		}
		nodes[comment.ID] = node
	}

	var roots []*domain.CommentNode
	for _, comment := range comments {
		node := nodes[comment.ID]
		if comment.ParentID != nil {
			if parent, ok := nodes[*comment.ParentID]; ok {
				parent.Replies = append(parent.Replies, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

func (s *CommentService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func contentPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
