package service

import "github.com/iliyamo/auth-service/internal/model"

// AuthMethod records which credential produced a Principal.
type AuthMethod string

const (
	AuthMethodBearer AuthMethod = "bearer"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// Principal is the authenticated identity attached to a request.
// SessionID is empty for API-key principals.
type Principal struct {
	UserID    string
	Username  string
	Email     string
	Role      model.Role
	SessionID string
	Method    AuthMethod
}

// HasRole is the single role check used by routes and services.  ADMIN
// satisfies every role.
func HasRole(p Principal, role model.Role) bool {
	if p.UserID == "" {
		return false
	}
	return p.Role == role || p.Role == model.RoleAdmin
}

// CanActOn reports whether p may read or modify the account userID.
func CanActOn(p Principal, userID string) bool {
	return p.UserID != "" && (p.UserID == userID || HasRole(p, model.RoleAdmin))
}
