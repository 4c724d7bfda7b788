package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-mini/internal/auth"
	"github.com/spec-kit/helpdesk-mini/internal/domain"
	"github.com/spec-kit/helpdesk-mini/internal/repository/memory"
	"github.com/spec-kit/helpdesk-mini/internal/service"
	apperrors "github.com/spec-kit/helpdesk-mini/pkg/util"
)

type fixture struct {
	tickets  *memory.TicketRepository
	comments *memory.CommentRepository
	timeline *memory.TimelineRepository
	users    *memory.UserRepository

	ticketService  *service.TicketService
	commentService *service.CommentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		tickets:  memory.NewTicketRepository(),
		comments: memory.NewCommentRepository(),
		timeline: memory.NewTimelineRepository(),
		users:    memory.NewUserRepository(),
	}
	recorder := service.NewTimelineRecorder(f.timeline)
	f.ticketService = service.NewTicketService(service.TicketDependencies{
		TicketRepo:  f.tickets,
		CommentRepo: f.comments,
		UserRepo:    f.users,
		Recorder:    recorder,
	})
	f.commentService = service.NewCommentService(service.CommentDependencies{
		CommentRepo: f.comments,
		TicketRepo:  f.tickets,
		UserRepo:    f.users,
		Recorder:    recorder,
	})
	return f
}

func (f *fixture) addUser(t *testing.T, id string, role domain.Role) auth.Actor {
	t.Helper()
	err := f.users.Create(context.Background(), &domain.User{
		ID:    id,
		Name:  "User " + id,
		Email: id + "@example.com",
		Role:  role,
	})
	require.NoError(t, err)
	return auth.Actor{ID: id, Role: role}
}

func (f *fixture) createTicket(t *testing.T, actor auth.Actor, title string) *domain.Ticket {
	t.Helper()
	ticket, err := f.ticketService.Create(context.Background(), actor, service.TicketCreateInput{
		Title:       title,
		Description: "description of " + title,
		SLADeadline: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	return ticket
}

func domainErr(t *testing.T, err error) *apperrors.DomainError {
	t.Helper()
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	return de
}

func TestCreateTicketDefaults(t *testing.T) {
	f := newFixture(t)
	actor := f.addUser(t, "alice", domain.RoleUser)

	ticket, err := f.ticketService.Create(context.Background(), actor, service.TicketCreateInput{
		Title:       "Printer on fire",
		Description: "It is quite literally on fire",
		SLADeadline: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	require.Equal(t, domain.TicketPriorityLow, ticket.Priority)
	require.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.Equal(t, 0, ticket.Version)
	require.Equal(t, "alice", ticket.CreatedBy)

	require.Len(t, ticket.Timeline, 1)
	require.Equal(t, "Ticket created", ticket.Timeline[0].Action)
	require.Equal(t, "Ticket created with priority Low", ticket.Timeline[0].Description)
	require.Equal(t, "alice", ticket.Timeline[0].UserID)
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	actor := f.addUser(t, "alice", domain.RoleUser)

	_, err := f.ticketService.Create(context.Background(), actor, service.TicketCreateInput{
		Title: "   ",
	})
	de := domainErr(t, err)
	require.Equal(t, "VALIDATION_FAILED", de.Code)
	require.Contains(t, de.Details, "title")
	require.Contains(t, de.Details, "description")
	require.Contains(t, de.Details, "slaDeadline")

	_, err = f.ticketService.Create(context.Background(), actor, service.TicketCreateInput{
		Title:       "t",
		Description: "d",
		Priority:    "Urgent",
		SLADeadline: time.Now().Add(time.Hour),
	})
	require.Equal(t, "VALIDATION_FAILED", domainErr(t, err).Code)
}

func TestUpdateTicketIncrementsVersion(t *testing.T) {
	f := newFixture(t)
	agent := f.addUser(t, "agent", domain.RoleAgent)
	ticket := f.createTicket(t, agent, "Slow laptop")

	status := domain.TicketStatusInProgress
	updated, err := f.ticketService.Update(context.Background(), agent, ticket.ID, 0, service.TicketChanges{
		Status: &status,
	})
	require.NoError(t, err)
	require.Equal(t, 1, updated.Version)
	require.Equal(t, domain.TicketStatusInProgress, updated.Status)

	detail, err := f.ticketService.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, 1, detail.Version)
	require.Len(t, detail.History, 2)
	require.Equal(t, "Ticket updated", detail.History[1].Action)
	require.Equal(t, "Ticket updated with changes: status", detail.History[1].Description)
}

func TestUpdateTicketStaleVersionConflicts(t *testing.T) {
	f := newFixture(t)
	agent := f.addUser(t, "agent", domain.RoleAgent)
	ticket := f.createTicket(t, agent, "Broken keyboard")

	high := domain.TicketPriorityHigh
	_, err := f.ticketService.Update(context.Background(), agent, ticket.ID, 0, service.TicketChanges{Priority: &high})
	require.NoError(t, err)

	title := "changed title"
	_, err = f.ticketService.Update(context.Background(), agent, ticket.ID, 0, service.TicketChanges{Title: &title})
	de := domainErr(t, err)
	require.Equal(t, "CONFLICT", de.Code)

	// The losing write must not mutate the stored ticket.
	detail, err := f.ticketService.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, 1, detail.Version)
	require.Equal(t, "Broken keyboard", detail.Title)
	require.Equal(t, domain.TicketPriorityHigh, detail.Priority)
}

func TestUpdateTicketConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	agent := f.addUser(t, "agent", domain.RoleAgent)
	ticket := f.createTicket(t, agent, "Flaky VPN")

	const writers = 16
	results := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			title := fmt.Sprintf("title from writer %d", i)
			_, err := f.ticketService.Update(context.Background(), agent, ticket.ID, 0, service.TicketChanges{
				Title: &title,
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		require.Equal(t, "CONFLICT", domainErr(t, err).Code)
	}
	require.Equal(t, 1, winners, "exactly one concurrent update may win")

	detail, err := f.ticketService.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, 1, detail.Version)
}

func TestUpdateTicketRequiresChanges(t *testing.T) {
	f := newFixture(t)
	agent := f.addUser(t, "agent", domain.RoleAgent)
	ticket := f.createTicket(t, agent, "Nothing to see")

	_, err := f.ticketService.Update(context.Background(), agent, ticket.ID, 0, service.TicketChanges{})
	require.Equal(t, "VALIDATION_FAILED", domainErr(t, err).Code)
}

func TestUpdateTicketRejectsEndUsers(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.RoleUser)
	ticket := f.createTicket(t, alice, "mine but untouchable")

	status := domain.TicketStatusClosed
	_, err := f.ticketService.Update(context.Background(), alice, ticket.ID, 0, service.TicketChanges{Status: &status})
	require.Equal(t, "FORBIDDEN", domainErr(t, err).Code)
}

func TestUpdateTicketNotFound(t *testing.T) {
	f := newFixture(t)
	agent := f.addUser(t, "agent", domain.RoleAgent)

	title := "x"
	_, err := f.ticketService.Update(context.Background(), agent, "missing", 0, service.TicketChanges{Title: &title})
	require.Equal(t, "NOT_FOUND", domainErr(t, err).Code)
}

func TestListScopesUserToOwnTickets(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.RoleUser)
	bob := f.addUser(t, "bob", domain.RoleUser)
	agent := f.addUser(t, "agent", domain.RoleAgent)

	f.createTicket(t, alice, "alice one")
	f.createTicket(t, alice, "alice two")
	f.createTicket(t, bob, "bob one")

	list, err := f.ticketService.List(context.Background(), alice, service.TicketListQuery{})
	require.NoError(t, err)
	require.Equal(t, 2, list.Total)
	require.Len(t, list.Tickets, 2)
	for _, ticket := range list.Tickets {
		require.Equal(t, "alice", ticket.CreatedBy)
	}

	list, err = f.ticketService.List(context.Background(), agent, service.TicketListQuery{})
	require.NoError(t, err)
	require.Equal(t, 3, list.Total)
	require.Len(t, list.Tickets, 3)
}

func TestListScopeHoldsUnderSearch(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.RoleUser)
	bob := f.addUser(t, "bob", domain.RoleUser)

	bobTicket := f.createTicket(t, bob, "bob database ticket")
	_, err := f.commentService.Add(context.Background(), bob.ID, bobTicket.ID, "database is slow", nil)
	require.NoError(t, err)

	// A search term matching another user's ticket and comments must not
	// leak it into a scoped listing.
	list, err := f.ticketService.List(context.Background(), alice, service.TicketListQuery{Search: "database"})
	require.NoError(t, err)
	require.Empty(t, list.Tickets)
	require.Equal(t, 0, list.Total)
}

func TestListOrdersNewestFirst(t *testing.T) {
	f := newFixture(t)
	agent := f.addUser(t, "agent", domain.RoleAgent)

	first := f.createTicket(t, agent, "first")
	second := f.createTicket(t, agent, "second")

	list, err := f.ticketService.List(context.Background(), agent, service.TicketListQuery{})
	require.NoError(t, err)
	require.Len(t, list.Tickets, 2)
	require.Equal(t, second.ID, list.Tickets[0].ID)
	require.Equal(t, first.ID, list.Tickets[1].ID)
}

func TestListSearchUnionsCommentMatches(t *testing.T) {
	f := newFixture(t)
	agent := f.addUser(t, "agent", domain.RoleAgent)

	titleMatch := f.createTicket(t, agent, "database outage")
	commentMatch := f.createTicket(t, agent, "unrelated summary")
	f.createTicket(t, agent, "noise")

	_, err := f.commentService.Add(context.Background(), agent.ID, commentMatch.ID, "looks like the database again", nil)
	require.NoError(t, err)

	list, err := f.ticketService.List(context.Background(), agent, service.TicketListQuery{Search: "database"})
	require.NoError(t, err)

	ids := make([]string, 0, len(list.Tickets))
	for _, ticket := range list.Tickets {
		ids = append(ids, ticket.ID)
	}
	require.Contains(t, ids, titleMatch.ID)
	require.Contains(t, ids, commentMatch.ID)
	require.Len(t, ids, 2)

	// Total counts the scope, not the search result.
	require.Equal(t, 3, list.Total)
}

// Pagination applies to the title/description query only; tickets pulled in
// through comment matches join the result afterwards and can push the page
// past its limit.
func TestListSearchPaginationAppliesBeforeCommentUnion(t *testing.T) {
	f := newFixture(t)
	agent := f.addUser(t, "agent", domain.RoleAgent)

	for i := 0; i < 3; i++ {
		f.createTicket(t, agent, fmt.Sprintf("network issue %d", i))
	}
	commentMatch := f.createTicket(t, agent, "quiet ticket")
	_, err := f.commentService.Add(context.Background(), agent.ID, commentMatch.ID, "network looks degraded", nil)
	require.NoError(t, err)

	list, err := f.ticketService.List(context.Background(), agent, service.TicketListQuery{Search: "network", Limit: 2})
	require.NoError(t, err)

	require.Len(t, list.Tickets, 3, "2 from the page plus 1 comment match")
	ids := make(map[string]int)
	for _, ticket := range list.Tickets {
		ids[ticket.ID]++
	}
	require.Equal(t, 1, ids[commentMatch.ID])
	for _, n := range ids {
		require.Equal(t, 1, n, "no duplicates after the union")
	}
}

func TestListSearchDeduplicatesOverlap(t *testing.T) {
	f := newFixture(t)
	agent := f.addUser(t, "agent", domain.RoleAgent)

	ticket := f.createTicket(t, agent, "payment gateway down")
	_, err := f.commentService.Add(context.Background(), agent.ID, ticket.ID, "payment provider confirmed the outage", nil)
	require.NoError(t, err)

	list, err := f.ticketService.List(context.Background(), agent, service.TicketListQuery{Search: "payment"})
	require.NoError(t, err)
	require.Len(t, list.Tickets, 1)
}

func TestGetTicketDetail(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.RoleUser)

	created, err := f.ticketService.Create(context.Background(), alice, service.TicketCreateInput{
		Title:       "breached ticket",
		Description: "past due",
		Priority:    domain.TicketPriorityHigh,
		SLADeadline: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	root, err := f.commentService.Add(context.Background(), alice.ID, created.ID, "any update?", nil)
	require.NoError(t, err)
	_, err = f.commentService.Add(context.Background(), alice.ID, created.ID, "still waiting", &root.ID)
	require.NoError(t, err)

	detail, err := f.ticketService.Get(context.Background(), created.ID)
	require.NoError(t, err)

	require.True(t, detail.Breached)
	require.Equal(t, "User alice", detail.Creator.Name)

	require.Len(t, detail.History, 3)
	require.Equal(t, "Ticket created", detail.History[0].Action)
	require.Equal(t, "Comment added", detail.History[1].Action)
	require.Equal(t, "Comment added", detail.History[2].Action)

	require.Len(t, detail.Comments, 1)
	require.Equal(t, root.ID, detail.Comments[0].ID)
	require.Len(t, detail.Comments[0].Replies, 1)
	require.Equal(t, "still waiting", detail.Comments[0].Replies[0].Content)
}

func TestGetTicketFutureDeadlineNotBreached(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.RoleUser)

	created, err := f.ticketService.Create(context.Background(), alice, service.TicketCreateInput{
		Title:       "healthy ticket",
		Description: "plenty of time",
		SLADeadline: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	detail, err := f.ticketService.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.False(t, detail.Breached)
}

func TestGetTicketNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.ticketService.Get(context.Background(), "missing")
	require.Equal(t, "NOT_FOUND", domainErr(t, err).Code)
}
