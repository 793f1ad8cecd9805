package model

import "fmt"

// Role is a team member's permission level, ordered Member < Admin <
// Owner. Permission checks use AtLeast rather than comparing the
// string values, so the hierarchy lives in exactly one place.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

var roleRank = map[Role]int{
	RoleMember: 0,
	RoleAdmin:  1,
	RoleOwner:  2,
}

// ParseRole validates a role string coming from a request body. The
// owner role is intentionally not parseable: it is assigned once at
// team creation and never through the invite path.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleMember, RoleAdmin:
		return Role(s), nil
	case RoleOwner:
		return "", fmt.Errorf("role %q cannot be assigned", s)
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// AtLeast reports whether r grants at least the permissions of min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

func (r Role) String() string { return string(r) }
