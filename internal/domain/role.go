package domain

// Role is the immutable role claim carried by an access token.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleCustomer:
		return true
	}
	return false
}

// ParseRole converts a raw claim value into a Role.
func ParseRole(raw string) (Role, bool) {
	role := Role(raw)
	return role, role.Valid()
}
