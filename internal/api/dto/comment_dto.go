package dto

import "time"

// CreateCommentRequest payload. Parent references an existing comment on the
// same ticket for threaded replies.
type CreateCommentRequest struct {
	Content string  `json:"content"`
	Parent  *string `json:"parent"`
}

// CommentResponse is a flat comment as returned by the comment listing.
type CommentResponse struct {
	ID            string          `json:"id"`
	TicketID      string          `json:"ticket"`
	User          UserRefResponse `json:"user"`
	Parent        *string         `json:"parent,omitempty"`
	ParentPreview *string         `json:"parentPreview,omitempty"`
	Content       string          `json:"content"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// CommentNodeResponse is a comment with its replies nested beneath it.
type CommentNodeResponse struct {
	ID        string                `json:"id"`
	User      UserRefResponse       `json:"user"`
	Parent    *string               `json:"parent,omitempty"`
	Content   string                `json:"content"`
	CreatedAt time.Time             `json:"createdAt"`
	Replies   []CommentNodeResponse `json:"replies"`
}
