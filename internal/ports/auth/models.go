package auth

// Role del usuario dentro del marketplace.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleCaregiver Role = "caregiver"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleCaregiver, RoleAdmin:
		return true
	default:
		return false
	}
}

// Claims representa la información extraída del token.
type Claims struct {
	UserID string
	Email  string
	Role   Role
}
