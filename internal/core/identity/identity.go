// Package identity defines who is calling: the closed set of roles and the
// principal resolved from a credential.
package identity

import (
	"fmt"
	"strings"
)

type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleTechnician
	RoleRequester
)

// Stored role names, as written in the users table.
const (
	roleAdminName      = "admin"
	roleTechnicianName = "technicien"
	roleRequesterName  = "user"
)

var Roles = []Role{RoleAdmin, RoleTechnician, RoleRequester}

// ParseRole accepts the stored names plus their English aliases.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case roleAdminName:
		return RoleAdmin, nil
	case roleTechnicianName, "technician":
		return RoleTechnician, nil
	case roleRequesterName, "requester":
		return RoleRequester, nil
	}
	return RoleUnknown, fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return roleAdminName
	case RoleTechnician:
		return roleTechnicianName
	case RoleRequester:
		return roleRequesterName
	}
	return "unknown"
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTechnician || r == RoleRequester
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID int64
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
