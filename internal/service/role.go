package service

import "strings"

// Role is the mirrored account role. There is no pending state.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole accepts "admin" or "user" in any case.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleUser:
		return r, nil
	}
	return "", invalid(`role must be "admin" or "user"`)
}

func (r Role) IsAdmin() bool { return r == RoleAdmin }
