package rbac

// Role is a project membership role. The set is closed; access checks are
// explicit set membership, never an implicit ordering (OWNER does not
// satisfy a check that names only EDITOR).
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleEditor Role = "EDITOR"
	RoleViewer Role = "VIEWER"
)

// Writers is the role set required for content mutation.
func Writers() []Role {
	return []Role{RoleOwner, RoleEditor}
}

// Owners is the role set required for destructive project-level operations
// and membership management.
func Owners() []Role {
	return []Role{RoleOwner}
}

// In reports whether r is one of the given roles.
func (r Role) In(roles []Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}

// Valid reports whether the string names a known role.
func Valid(role string) bool {
	switch Role(role) {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}

// Normalize maps unknown role strings to VIEWER.
func Normalize(role string) Role {
	if Valid(role) {
		return Role(role)
	}
	return RoleViewer
}
