package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-mini/internal/domain"
	"github.com/spec-kit/helpdesk-mini/internal/service"
)

func TestAddCommentRecordsTimeline(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.RoleUser)
	ticket := f.createTicket(t, alice, "wifi down")

	comment, err := f.commentService.Add(context.Background(), alice.ID, ticket.ID, "  restarting the router  ", nil)
	require.NoError(t, err)
	require.Equal(t, "restarting the router", comment.Content, "content is trimmed")
	require.Nil(t, comment.ParentID)

	history, err := f.timeline.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "Comment added", history[1].Action)
	require.Equal(t, `Comment: "restarting the router"`, history[1].Description)
}

func TestAddReplyRecordsParentInTimeline(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.RoleUser)
	ticket := f.createTicket(t, alice, "wifi down")

	root, err := f.commentService.Add(context.Background(), alice.ID, ticket.ID, "first", nil)
	require.NoError(t, err)
	reply, err := f.commentService.Add(context.Background(), alice.ID, ticket.ID, "second", &root.ID)
	require.NoError(t, err)
	require.Equal(t, root.ID, *reply.ParentID)

	history, err := f.timeline.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	require.Equal(t, fmt.Sprintf(`Comment: "second" (Reply to %s)`, root.ID), last.Description)
}

func TestAddCommentTruncatesLongPreview(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.RoleUser)
	ticket := f.createTicket(t, alice, "wifi down")

	long := strings.Repeat("a", 500)
	_, err := f.commentService.Add(context.Background(), alice.ID, ticket.ID, long, nil)
	require.NoError(t, err)

	history, err := f.timeline.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	require.Equal(t, fmt.Sprintf("Comment: %q", strings.Repeat("a", 117)+"..."), last.Description)
}

func TestAddCommentValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.RoleUser)
	ticket := f.createTicket(t, alice, "wifi down")

	_, err := f.commentService.Add(context.Background(), alice.ID, ticket.ID, "   ", nil)
	require.Equal(t, "VALIDATION_FAILED", domainErr(t, err).Code)
}

func TestAddCommentMissingTicket(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.RoleUser)

	_, err := f.commentService.Add(context.Background(), alice.ID, "missing", "hello", nil)
	require.Equal(t, "NOT_FOUND", domainErr(t, err).Code)

	// Nothing may be persisted for the failed add.
	ids, err := f.comments.TicketIDsMatching(context.Background(), "hello")
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestAddReplyToForeignTicketFails(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.RoleUser)
	first := f.createTicket(t, alice, "first ticket")
	second := f.createTicket(t, alice, "second ticket")

	root, err := f.commentService.Add(context.Background(), alice.ID, first.ID, "on the first ticket", nil)
	require.NoError(t, err)

	_, err = f.commentService.Add(context.Background(), alice.ID, second.ID, "cross-ticket reply", &root.ID)
	require.Equal(t, "NOT_FOUND", domainErr(t, err).Code)
}

func TestAddReplyToMissingParentFails(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.RoleUser)
	ticket := f.createTicket(t, alice, "wifi down")

	missing := "does-not-exist"
	_, err := f.commentService.Add(context.Background(), alice.ID, ticket.ID, "reply", &missing)
	require.Equal(t, "NOT_FOUND", domainErr(t, err).Code)

	stored, err := f.comments.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Empty(t, stored, "failed reply must not be persisted")
}

func TestListResolvesAuthorsAndParentPreviews(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.RoleUser)
	agent := f.addUser(t, "agent", domain.RoleAgent)
	ticket := f.createTicket(t, alice, "wifi down")

	root, err := f.commentService.Add(context.Background(), alice.ID, ticket.ID, "router is blinking red", nil)
	require.NoError(t, err)
	_, err = f.commentService.Add(context.Background(), agent.ID, ticket.ID, "try power cycling it", &root.ID)
	require.NoError(t, err)

	views, err := f.commentService.List(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)

	require.Equal(t, "User alice", views[0].Author.Name)
	require.Nil(t, views[0].ParentPreview)

	require.Equal(t, "User agent", views[1].Author.Name)
	require.NotNil(t, views[1].ParentPreview)
	require.Equal(t, "router is blinking red", *views[1].ParentPreview)
}

func TestBuildThreadNestsReplies(t *testing.T) {
	now := time.Now()
	comments := []domain.Comment{
		{ID: "c1", TicketID: "t", UserID: "alice", Content: "root one", CreatedAt: now},
		{ID: "c2", TicketID: "t", UserID: "bob", ParentID: ptr("c1"), Content: "reply to one", CreatedAt: now.Add(time.Second)},
		{ID: "c3", TicketID: "t", UserID: "alice", Content: "root two", CreatedAt: now.Add(2 * time.Second)},
		{ID: "c4", TicketID: "t", UserID: "bob", ParentID: ptr("c2"), Content: "nested reply", CreatedAt: now.Add(3 * time.Second)},
	}
	authors := map[string]domain.UserRef{
		"alice": {ID: "alice", Name: "Alice"},
	}

	roots := service.BuildThread(comments, authors)
	require.Len(t, roots, 2)

	require.Equal(t, "c1", roots[0].ID)
	require.Equal(t, "Alice", roots[0].Author.Name)
	require.Equal(t, "c3", roots[1].ID)

	require.Len(t, roots[0].Replies, 1)
	require.Equal(t, "c2", roots[0].Replies[0].ID)
	// Authors absent from the map fall back to a bare id reference.
	require.Equal(t, domain.UserRef{ID: "bob"}, roots[0].Replies[0].Author)

	require.Len(t, roots[0].Replies[0].Replies, 1)
	require.Equal(t, "c4", roots[0].Replies[0].Replies[0].ID)
}

func TestBuildThreadKeepsOrphansAsRoots(t *testing.T) {
	comments := []domain.Comment{
		{ID: "c1", TicketID: "t", UserID: "alice", Content: "root"},
		{ID: "c2", TicketID: "t", UserID: "bob", ParentID: ptr("gone"), Content: "orphaned reply"},
	}

	roots := service.BuildThread(comments, nil)
	require.Len(t, roots, 2)
	require.Equal(t, "c1", roots[0].ID)
	require.Equal(t, "c2", roots[1].ID)
	require.Empty(t, roots[0].Replies)
}

func TestBuildThreadDeepChain(t *testing.T) {
	const depth = 10000
	comments := make([]domain.Comment, 0, depth)
	for i := 0; i < depth; i++ {
		comment := domain.Comment{ID: fmt.Sprintf("c%d", i), TicketID: "t", UserID: "alice", Content: "x"}
		if i > 0 {
			comment.ParentID = ptr(fmt.Sprintf("c%d", i-1))
		}
		comments = append(comments, comment)
	}

	roots := service.BuildThread(comments, nil)
	require.Len(t, roots, 1)

	node := roots[0]
	for i := 1; i < depth; i++ {
		require.Len(t, node.Replies, 1)
		node = node.Replies[0]
	}
	require.Empty(t, node.Replies)
}

func ptr(s string) *string {
	return &s
}
