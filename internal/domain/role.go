package domain

// Role names as they travel in tokens and JSON.
const (
	RoleStudent = "ESTUDIANTE"
	RoleTeacher = "DOCENTE"
	RoleAdmin   = "ADMIN"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated caller as carried by a session token.
type Principal struct {
	UserID string
	Role   string
	Email  string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
