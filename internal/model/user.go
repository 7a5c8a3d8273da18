package model

import "time"

// Role is the authorization level attached to a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// User represents an account record as stored in the `users` table.
// PasswordHash and PasswordSalt never leave the service layer; handlers
// render users through their own response types.
//
// Fields:
//
//	ID           – uuid primary key.
//	Name         – display name.
//	Username     – unique login name (case-sensitive).
//	Email        – unique email address (case-sensitive).
//	PasswordHash – bcrypt digest.
//	PasswordSalt – salt segment of the bcrypt digest.
//	Role         – USER or ADMIN.
type User struct {
	ID           string    // users.id
	Name         string    // users.name
	Username     string    // users.username
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	PasswordSalt string    // users.password_salt
	Role         Role      // users.role
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// UserFilter narrows an admin user listing.  Search matches name, username
// or email case-insensitively.
type UserFilter struct {
	Search string
	Role   Role
	Limit  int
	Offset int
}

// UserPatch carries optional profile changes.  Nil fields are left as is.
type UserPatch struct {
	Name     *string
	Username *string
	Email    *string
	Role     *Role
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Username == nil && p.Email == nil && p.Role == nil
}
