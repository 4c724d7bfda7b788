package domain

import "time"

// Comment is a single entry in a ticket's discussion. ParentID is nil for
// top-level comments. Comments are immutable once created; cycles cannot
// occur because a parent must already exist when its reply is created.
type Comment struct {
	ID        string
	TicketID  string
	UserID    string
	ParentID  *string
	Content   string
	CreatedAt time.Time
}

// CommentNode is a comment with its replies attached, forming the threaded
// forest returned on ticket detail reads.
type CommentNode struct {
	Comment
	Author  UserRef
	Replies []*CommentNode
}
