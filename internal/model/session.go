package model

import "time"

// Session models a row in the `sessions` table: one login on one device.
// Its ID is embedded in every token issued for it.  Only the SHA-256 of
// the current refresh token is stored.
type Session struct {
	ID               string     // sessions.id
	UserID           string     // sessions.user_id
	DeviceID         string     // sessions.device_id (nullable)
	UserAgent        string     // sessions.user_agent (nullable)
	RefreshTokenHash string     // sessions.refresh_token_hash
	ExpiresAt        time.Time  // sessions.expires_at
	RevokedAt        *time.Time // sessions.revoked_at (nullable)
	CreatedAt        time.Time  // sessions.created_at
}

// ActiveAt reports whether the session is unrevoked and unexpired at now.
func (s Session) ActiveAt(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// DeviceMeta is the optional client description recorded on a session.
type DeviceMeta struct {
	DeviceID  string
	UserAgent string
}
