package service

import "errors"

// Failures surfaced to the HTTP layer.  Token and credential errors are
// deliberately coarse so callers learn nothing about which check failed.
var (
	ErrInvalidCredentials         = errors.New("invalid credentials")
	ErrInvalidOrExpiredToken      = errors.New("invalid or expired token")
	ErrInvalidOrExpiredResetToken = errors.New("invalid or expired reset token")
	ErrUnauthenticated            = errors.New("unauthenticated")
	ErrForbidden                  = errors.New("forbidden")
	ErrNotFound                   = errors.New("not found")
	ErrSelfDelete                 = errors.New("cannot delete own account")
	ErrNothingToUpdate            = errors.New("no data provided to update")
)

// DuplicateCredentialError reports which unique credential is taken.
type DuplicateCredentialError struct {
	Field string // "username" or "email"
}

func (e *DuplicateCredentialError) Error() string {
	return e.Field + " already exists"
}
