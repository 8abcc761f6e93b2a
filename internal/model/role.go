package model

import (
	"fmt"
	"strings"
)

// Role is a project-scoped membership role.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
)

// rank orders roles by capability; unknown roles rank zero and pass no check.
var rank = map[Role]int{
	RoleUser:    1,
	RoleManager: 2,
	RoleAdmin:   3,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return rank[r] > 0 }

// AtLeast reports whether r grants at least the capabilities of min.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && min.Valid() && rank[r] >= rank[min]
}

func (r Role) String() string { return string(r) }

// ParseRole parses a role name case-insensitively. Empty input yields "".
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	r := Role(strings.ToUpper(s))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
