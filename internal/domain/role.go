package domain

import "time"

// Built-in role names seeded at startup.
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

// DefaultRoles returns the roles every deployment starts with.
func DefaultRoles() []string {
	return []string{RoleUser, RoleAdmin}
}

// IsDefaultRole checks whether the given name is one of the seeded roles.
func IsDefaultRole(name string) bool {
	for _, r := range DefaultRoles() {
		if r == name {
			return true
		}
	}
	return false
}

// Role is a named permission group.
type Role struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
