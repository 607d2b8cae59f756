package auth

import "fmt"

// Role is the caller's authorization role.
type Role int

const (
	RoleUnknown Role = iota
	RoleStudent
	RoleTeacher
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleTeacher:
		return "teacher"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseRole converts the wire form of a role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "student":
		return RoleStudent, nil
	case "teacher":
		return RoleTeacher, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleUnknown, fmt.Errorf("unknown role %q", s)
	}
}

// Identity is the authenticated caller.
type Identity struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the caller is an administrator.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// CanManage reports whether the caller may act on a resource owned by the
// given teacher: administrators always, teachers only on their own.
func (i Identity) CanManage(ownerID string) bool {
	if i.IsAdmin() {
		return true
	}
	return i.Role == RoleTeacher && i.ID != "" && i.ID == ownerID
}

// Staff reports whether the caller is a teacher or an administrator.
func (i Identity) Staff() bool {
	return i.Role == RoleTeacher || i.Role == RoleAdmin
}
