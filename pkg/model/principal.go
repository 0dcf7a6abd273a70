package model

// Role of an authenticated principal as asserted by the identity gateway.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
)

// Principal is the authenticated identity attached to every request by the
// gateway. The core trusts it as-is and performs no credential checks.
type Principal struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

func (p Principal) Is(userID string) bool {
	return p.UserID == userID
}
