package model

import "time"

// PasswordResetToken models the `password_reset_tokens` table.  The raw
// token handed to the user is never stored.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// APIKey models the `api_keys` table.  KeyPrefix holds the first characters
// of the raw key so owners can tell keys apart in listings.
type APIKey struct {
	ID        string
	UserID    string
	Name      *string
	KeyHash   string
	KeyPrefix string
	IsActive  bool
	ExpiresAt *time.Time
	LastUsed  *time.Time
	CreatedAt time.Time
}

// UsableAt reports whether the key may authenticate a request at now.
func (k APIKey) UsableAt(now time.Time) bool {
	return k.IsActive && (k.ExpiresAt == nil || now.Before(*k.ExpiresAt))
}
