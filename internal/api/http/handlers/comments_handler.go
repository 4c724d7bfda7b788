package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-mini/internal/api/dto"
	"github.com/spec-kit/helpdesk-mini/internal/auth"
	"github.com/spec-kit/helpdesk-mini/internal/domain"
	"github.com/spec-kit/helpdesk-mini/internal/service"
	apperrors "github.com/spec-kit/helpdesk-mini/pkg/util"
)

// CommentsHandler exposes the per-ticket comment endpoints.
type CommentsHandler struct {
	service *service.CommentService
}

// NewCommentsHandler constructs handler.
func NewCommentsHandler(commentService *service.CommentService) *CommentsHandler {
	return &CommentsHandler{service: commentService}
}

// AddComment POST /api/tickets/:id/comments.
func (h *CommentsHandler) AddComment(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	comment, err := h.service.Add(c.Context(), actor.ID, c.Params("id"), req.Content, req.Parent)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Comment added",
		"comment": commentResponse(comment, domain.UserRef{ID: comment.UserID}, nil),
	})
}

// ListComments GET /api/tickets/:id/comments.
func (h *CommentsHandler) ListComments(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	views, err := h.service.List(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	comments := make([]dto.CommentResponse, 0, len(views))
	for _, view := range views {
		comments = append(comments, commentResponse(&view.Comment, view.Author, view.ParentPreview))
	}
	return c.JSON(comments)
}

func commentResponse(comment *domain.Comment, author domain.UserRef, parentPreview *string) dto.CommentResponse {
	return dto.CommentResponse{
		ID:            comment.ID,
		TicketID:      comment.TicketID,
		User:          userRef(author),
		Parent:        comment.ParentID,
		ParentPreview: parentPreview,
		Content:       comment.Content,
		CreatedAt:     comment.CreatedAt,
	}
}
