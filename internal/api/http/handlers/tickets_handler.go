package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-mini/internal/api/dto"
	"github.com/spec-kit/helpdesk-mini/internal/auth"
	"github.com/spec-kit/helpdesk-mini/internal/domain"
	"github.com/spec-kit/helpdesk-mini/internal/service"
	apperrors "github.com/spec-kit/helpdesk-mini/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.Create(c.Context(), actor, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		SLADeadline: req.SLADeadline,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Ticket created",
		"ticket":  bareSummary(ticket),
	})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	query := service.TicketListQuery{
		Limit:  parseInt(c.Query("limit"), 10),
		Offset: parseInt(c.Query("offset"), 0),
		Search: c.Query("search"),
	}
	list, err := h.service.List(c.Context(), actor, query)
	if err != nil {
		return err
	}

	tickets := make([]dto.TicketSummary, 0, len(list.Tickets))
	for i := range list.Tickets {
		tickets = append(tickets, ticketSummary(&list.Tickets[i]))
	}
	return c.JSON(dto.TicketListResponse{Total: list.Total, Tickets: tickets})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	detail, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(ticketDetail(detail))
}

// UpdateTicket PATCH /api/tickets/:id. Role gating (admin, agent) happens in
// the route middleware.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Version == nil {
		return apperrors.NewValidationError("version is required", map[string]any{"field": "version"})
	}

	ticket, err := h.service.Update(c.Context(), actor, c.Params("id"), *req.Version, service.TicketChanges{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
		SLADeadline: req.SLADeadline,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Ticket updated",
		"ticket":  bareSummary(ticket),
	})
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func userRef(ref domain.UserRef) dto.UserRefResponse {
	return dto.UserRefResponse{ID: ref.ID, Name: ref.Name, Email: ref.Email}
}

func optionalUserRef(ref *domain.UserRef) *dto.UserRefResponse {
	if ref == nil {
		return nil
	}
	resp := userRef(*ref)
	return &resp
}

// bareSummary renders a ticket without resolved identities or breach
// annotation, used for create/update responses.
func bareSummary(ticket *domain.Ticket) dto.TicketSummary {
	summary := dto.TicketSummary{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Priority:    ticket.Priority,
		Status:      ticket.Status,
		SLADeadline: ticket.SLADeadline,
		CreatedBy:   dto.UserRefResponse{ID: ticket.CreatedBy},
		Version:     ticket.Version,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
	if ticket.AssignedTo != nil {
		summary.AssignedTo = &dto.UserRefResponse{ID: *ticket.AssignedTo}
	}
	return summary
}

func ticketSummary(ticket *service.TicketSummary) dto.TicketSummary {
	return dto.TicketSummary{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Priority:    ticket.Priority,
		Status:      ticket.Status,
		SLADeadline: ticket.SLADeadline,
		CreatedBy:   userRef(ticket.Creator),
		AssignedTo:  optionalUserRef(ticket.Assignee),
		Version:     ticket.Version,
		Breached:    ticket.Breached,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

func ticketDetail(detail *service.TicketDetail) dto.TicketDetailResponse {
	timeline := make([]dto.TimelineEntryResponse, 0, len(detail.History))
	for _, entry := range detail.History {
		timeline = append(timeline, dto.TimelineEntryResponse{
			Action:      entry.Action,
			User:        userRef(entry.Actor),
			Description: entry.Description,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return dto.TicketDetailResponse{
		TicketSummary: dto.TicketSummary{
			ID:          detail.ID,
			Title:       detail.Title,
			Description: detail.Description,
			Priority:    detail.Priority,
			Status:      detail.Status,
			SLADeadline: detail.SLADeadline,
			CreatedBy:   userRef(detail.Creator),
			AssignedTo:  optionalUserRef(detail.Assignee),
			Version:     detail.Version,
			Breached:    detail.Breached,
			CreatedAt:   detail.CreatedAt,
			UpdatedAt:   detail.UpdatedAt,
		},
		Timeline: timeline,
		Comments: commentNodes(detail.Comments),
	}
}

// commentNodes converts the reply forest iteratively; deep reply chains must
// not grow the call stack.
func commentNodes(roots []*domain.CommentNode) []dto.CommentNodeResponse {
	result := make([]dto.CommentNodeResponse, len(roots))

	type frame struct {
		node *domain.CommentNode
		out  *dto.CommentNodeResponse
	}
	var stack []frame
	for i, root := range roots {
		stack = append(stack, frame{node: root, out: &result[i]})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		*f.out = dto.CommentNodeResponse{
			ID:        f.node.ID,
			User:      userRef(f.node.Author),
			Parent:    f.node.ParentID,
			Content:   f.node.Content,
			CreatedAt: f.node.CreatedAt,
			Replies:   make([]dto.CommentNodeResponse, len(f.node.Replies)),
		}
		for i, reply := range f.node.Replies {
			stack = append(stack, frame{node: reply, out: &f.out.Replies[i]})
		}
	}
	return result
}
