package domain

import "time"

// Role enumerates caller roles. End-users see only their own tickets;
// agents and admins triage across the board.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// User is the domain model for ticket creators, agents and admins.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRef is the display form of a user identity attached to tickets,
// timeline entries and comments.
type UserRef struct {
	ID    string
	Name  string
	Email string
}

// Ref projects a user to its display form.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}
