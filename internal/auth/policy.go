package auth

import (
	"github.com/spec-kit/helpdesk-mini/internal/domain"
)

// Actor is the authenticated identity consumed by every operation: the user
// id plus its role, as resolved from a validated bearer token.
type Actor struct {
	ID   string
	Role domain.Role
}

// TicketScope returns the role-based visibility restriction for listings:
// end-users see only tickets they created, agents and admins see all. A nil
// return means no restriction.
func TicketScope(actor Actor) *string {
	if actor.Role == domain.RoleUser {
		createdBy := actor.ID
		return &createdBy
	}
	return nil
}

// CanManageTickets reports whether the role may perform ticket updates.
func CanManageTickets(role domain.Role) bool {
	return role == domain.RoleAdmin || role == domain.RoleAgent
}
