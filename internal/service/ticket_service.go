package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-mini/internal/auth"
	"github.com/spec-kit/helpdesk-mini/internal/domain"
	"github.com/spec-kit/helpdesk-mini/internal/events"
	"github.com/spec-kit/helpdesk-mini/internal/repository"
	"github.com/spec-kit/helpdesk-mini/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-mini/pkg/util"
)

// TicketService is the lifecycle manager: creation, role-scoped listing,
// detail retrieval with nested comments, and the optimistic-locked update.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	users      repository.UserRepository
	recorder   *TimelineRecorder
	dispatcher events.Dispatcher
}

// TicketDependencies bundles requirements for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	UserRepo    repository.UserRepository
	Recorder    *TimelineRecorder
	Dispatcher  events.Dispatcher
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		users:      deps.UserRepo,
		recorder:   deps.Recorder,
		dispatcher: deps.Dispatcher,
	}
}

// TicketCreateInput describes the ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	SLADeadline time.Time
	AssignedTo  *string
}

// TicketListQuery captures listing parameters.
type TicketListQuery struct {
	Limit  int
	Offset int
	Search string
}

// TicketSummary is a listed ticket annotated with its computed breach state
// and resolved identities.
type TicketSummary struct {
	domain.Ticket
	Breached bool
	Creator  domain.UserRef
	Assignee *domain.UserRef
}

// TicketList is the listing result. Total reflects the role-scoped ticket
// count only, independent of any search term.
type TicketList struct {
	Total   int
	Tickets []TicketSummary
}

// TimelineEntryView is a timeline entry with its actor identity resolved.
type TimelineEntryView struct {
	domain.TimelineEntry
	Actor domain.UserRef
}

// TicketDetail is a single ticket with breach state, resolved identities,
// resolved timeline and the nested comment forest.
type TicketDetail struct {
	domain.Ticket
	Breached bool
	Creator  domain.UserRef
	Assignee *domain.UserRef
	History  []TimelineEntryView
	Comments []*domain.CommentNode
}

// Create validates the input and persists a new ticket with version 0 and a
// single initial timeline entry.
func (s *TicketService) Create(ctx context.Context, actor auth.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	missing := map[string]any{}
	if strings.TrimSpace(input.Title) == "" {
		missing["title"] = "required"
	}
	if strings.TrimSpace(input.Description) == "" {
		missing["description"] = "required"
	}
	if input.SLADeadline.IsZero() {
		missing["slaDeadline"] = "required"
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", missing)
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityLow
	}
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": input.Priority})
	}

	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
		SLADeadline: input.SLADeadline,
		CreatedBy:   actor.ID,
		AssignedTo:  input.AssignedTo,
		Version:     0,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	entry, err := s.recorder.Record(ctx, ticket.ID, "Ticket created", actor.ID,
		fmt.Sprintf("Ticket created with priority %s", priority))
	if err != nil {
		return nil, err
	}
	ticket.Timeline = []domain.TimelineEntry{*entry}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCreatedPayload{
			Title:       ticket.Title,
			Priority:    ticket.Priority,
			SLADeadline: ticket.SLADeadline,
			AssignedTo:  ticket.AssignedTo,
		},
	})
	return ticket, nil
}

// List returns role-scoped tickets sorted by creation time descending.
// The search term matches title and description case-insensitively; tickets
// whose comments match are unioned in afterwards. Pagination applies to the
// primary query only, before the comment-matched tickets join the result —
// a documented quirk of the listing contract, kept deliberately.
func (s *TicketService) List(ctx context.Context, actor auth.Actor, query TicketListQuery) (*TicketList, error) {
	scope := auth.TicketScope(actor)

	filter := repository.TicketFilter{
		CreatedBy: scope,
		Limit:     query.Limit,
		Offset:    query.Offset,
	}
	search := strings.TrimSpace(query.Search)
	if search != "" {
		filter.Search = &search
	}

	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	if search != "" {
		matchedIDs, err := s.comments.TicketIDsMatching(ctx, search)
		if err != nil {
			return nil, err
		}
		fromComments, err := s.tickets.ListByIDs(ctx, matchedIDs, scope)
		if err != nil {
			return nil, err
		}
		tickets = dedupeTickets(append(tickets, fromComments...))
	}

	total, err := s.tickets.Count(ctx, scope)
	if err != nil {
		return nil, err
	}

	refs, err := s.resolveRefs(ctx, collectTicketUserIDs(tickets))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	summaries := make([]TicketSummary, 0, len(tickets))
	for _, ticket := range tickets {
		summaries = append(summaries, TicketSummary{
			Ticket:   ticket,
			Breached: sla.IsBreached(ticket.SLADeadline, now),
			Creator:  refs.lookup(ticket.CreatedBy),
			Assignee: refs.lookupOptional(ticket.AssignedTo),
		})
	}
	return &TicketList{Total: total, Tickets: summaries}, nil
}

// Get returns one ticket with breach state, resolved identities, its full
// timeline and the threaded comment forest.
func (s *TicketService) Get(ctx context.Context, id string) (*TicketDetail, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, err
	}

	history, err := s.recorder.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.Timeline = history

	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	ids := collectTicketUserIDs([]domain.Ticket{*ticket})
	for _, entry := range history {
		ids = append(ids, entry.UserID)
	}
	for _, comment := range comments {
		ids = append(ids, comment.UserID)
	}
	refs, err := s.resolveRefs(ctx, ids)
	if err != nil {
		return nil, err
	}

	historyViews := make([]TimelineEntryView, 0, len(history))
	for _, entry := range history {
		historyViews = append(historyViews, TimelineEntryView{
			TimelineEntry: entry,
			Actor:         refs.lookup(entry.UserID),
		})
	}

	return &TicketDetail{
		Ticket:   *ticket,
		Breached: sla.IsBreached(ticket.SLADeadline, time.Now()),
		Creator:  refs.lookup(ticket.CreatedBy),
		Assignee: refs.lookupOptional(ticket.AssignedTo),
		History:  historyViews,
		Comments: BuildThread(comments, refs),
	}, nil
}

// TicketChanges is the explicit whitelist of updatable fields. Identity,
// creator, version, timeline and timestamps are not reachable from a
// request body.
type TicketChanges struct {
	Title       *string
	Description *string
	Priority    *domain.TicketPriority
	Status      *domain.TicketStatus
	SLADeadline *time.Time
	AssignedTo  *string
}

// Update applies the whitelisted changes under optimistic locking. The
// version comparison and write happen as one atomic conditional update in
// the repository; a stale expectedVersion yields a conflict with no
// mutation, and a successful update increments the version by exactly 1.
func (s *TicketService) Update(ctx context.Context, actor auth.Actor, id string, expectedVersion int, changes TicketChanges) (*domain.Ticket, error) {
	if !auth.CanManageTickets(actor.Role) {
		return nil, apperrors.NewForbidden("only agents and admins may update tickets")
	}

	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, err
	}

	changed, err := applyChanges(ticket, changes)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return nil, apperrors.NewValidationError("no updatable fields provided", nil)
	}

	if err := s.tickets.UpdateVersioned(ctx, ticket, expectedVersion); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		case errors.Is(err, repository.ErrVersionConflict):
			return nil, apperrors.NewConflict("ticket has been updated by someone else",
				map[string]any{"expected_version": expectedVersion})
		default:
			return nil, err
		}
	}

	entry, err := s.recorder.Record(ctx, ticket.ID, "Ticket updated", actor.ID,
		fmt.Sprintf("Ticket updated with changes: %s", strings.Join(changed, ", ")))
	if err != nil {
		return nil, err
	}
	ticket.Timeline = append(ticket.Timeline, *entry)

	s.publish(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketUpdatedPayload{
			Version:       ticket.Version,
			ChangedFields: changed,
		},
	})
	return ticket, nil
}

func applyChanges(ticket *domain.Ticket, changes TicketChanges) ([]string, error) {
	var changed []string
	if changes.Title != nil {
		title := strings.TrimSpace(*changes.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title cannot be empty", map[string]any{"field": "title"})
		}
		ticket.Title = title
		changed = append(changed, "title")
	}
	if changes.Description != nil {
		description := strings.TrimSpace(*changes.Description)
		if description == "" {
			return nil, apperrors.NewValidationError("description cannot be empty", map[string]any{"field": "description"})
		}
		ticket.Description = description
		changed = append(changed, "description")
	}
	if changes.Priority != nil {
		if !domain.ValidPriority(*changes.Priority) {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *changes.Priority})
		}
		ticket.Priority = *changes.Priority
		changed = append(changed, "priority")
	}
	if changes.Status != nil {
		if !domain.ValidStatus(*changes.Status) {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *changes.Status})
		}
		ticket.Status = *changes.Status
		changed = append(changed, "status")
	}
	if changes.SLADeadline != nil {
		if changes.SLADeadline.IsZero() {
			return nil, apperrors.NewValidationError("slaDeadline cannot be empty", map[string]any{"field": "slaDeadline"})
		}
		ticket.SLADeadline = *changes.SLADeadline
		changed = append(changed, "slaDeadline")
	}
	if changes.AssignedTo != nil {
		ticket.AssignedTo = changes.AssignedTo
		changed = append(changed, "assignedTo")
	}
	return changed, nil
}

// userRefs resolves user ids to display identities; unknown ids fall back to
// a bare id reference.
type userRefs map[string]domain.UserRef

func (r userRefs) lookup(id string) domain.UserRef {
	if ref, ok := r[id]; ok {
		return ref
	}
	return domain.UserRef{ID: id}
}

func (r userRefs) lookupOptional(id *string) *domain.UserRef {
	if id == nil {
		return nil
	}
	ref := r.lookup(*id)
	return &ref
}

func (s *TicketService) resolveRefs(ctx context.Context, ids []string) (userRefs, error) {
	users, err := s.users.ListByIDs(ctx, uniqueStrings(ids))
	if err != nil {
		return nil, err
	}
	refs := make(userRefs, len(users))
	for id, user := range users {
		refs[id] = user.Ref()
	}
	return refs, nil
}

func collectTicketUserIDs(tickets []domain.Ticket) []string {
	var ids []string
	for _, ticket := range tickets {
		ids = append(ids, ticket.CreatedBy)
		if ticket.AssignedTo != nil {
			ids = append(ids, *ticket.AssignedTo)
		}
	}
	return ids
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var result []string
	for _, value := range values {
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

// dedupeTickets removes duplicate ids keeping the first occurrence, so
// page results win over comment-matched additions.
func dedupeTickets(tickets []domain.Ticket) []domain.Ticket {
	seen := make(map[string]struct{}, len(tickets))
	result := make([]domain.Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		if _, dup := seen[ticket.ID]; dup {
			continue
		}
		seen[ticket.ID] = struct{}{}
		result = append(result, ticket)
	}
	return result
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
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
