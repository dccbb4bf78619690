package rbac

import "strings"

// Role is the coarse role supplied by the identity collaborator.
type Role string

const (
	RoleStandard   Role = "standard"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole normalises a role string; unknown values are reported as invalid.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleStandard, RoleAdmin, RoleSuperAdmin:
		return role, true
	}
	return "", false
}

// Actor describes the caller of a core operation. It is always passed
// explicitly; nothing in the core reads identity from ambient state.
type Actor struct {
	ID   int64
	Role Role
}

// Authenticated reports whether the actor carries an identity.
func (a Actor) Authenticated() bool {
	return a.ID > 0
}

// CanApprove reports approval authority (admin or super_admin).
func (a Actor) CanApprove() bool {
	if !a.Authenticated() {
		return false
	}
	return a.Role == RoleAdmin || a.Role == RoleSuperAdmin
}
