package service

import (
	"context"
	"time"

	"github.com/iliyamo/auth-service/internal/model"
)

// The store interfaces are implemented by the MySQL repositories.  Misses
// are reported as sql.ErrNoRows and unique violations as
// *repository.DuplicateKeyError.

type UserStore interface {
	Create(ctx context.Context, u model.User) error
	CreateWithSession(ctx context.Context, u model.User, s model.Session) error
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByLogin(ctx context.Context, login string) (model.User, error)
	FindConflict(ctx context.Context, username, email, excludeID string) (string, error)
	List(ctx context.Context, f model.UserFilter) ([]model.User, error)
	Count(ctx context.Context, f model.UserFilter) (int, error)
	Update(ctx context.Context, id string, p model.UserPatch, now time.Time) error
	Delete(ctx context.Context, id string) error
}

type SessionStore interface {
	Create(ctx context.Context, s model.Session) error
	FindValid(ctx context.Context, id string, now time.Time) (model.Session, error)
	Rotate(ctx context.Context, id, oldHash, newHash string, exp, now time.Time) (bool, error)
	Revoke(ctx context.Context, id, userID string, now time.Time) (bool, error)
	RevokeAll(ctx context.Context, userID string, now time.Time) (int64, error)
	ListActive(ctx context.Context, userID string, now time.Time) ([]model.Session, error)
}

type ResetTokenStore interface {
	Create(ctx context.Context, t model.PasswordResetToken) error
	FindValid(ctx context.Context, tokenHash string, now time.Time) (model.PasswordResetToken, error)
	Consume(ctx context.Context, t model.PasswordResetToken, salt, hash string, now time.Time) (int64, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type APIKeyStore interface {
	Create(ctx context.Context, k model.APIKey) error
	GetByHash(ctx context.Context, keyHash string) (model.APIKey, error)
	TouchLastUsed(ctx context.Context, id string, now time.Time) error
	ListForUser(ctx context.Context, userID string) ([]model.APIKey, error)
	Deactivate(ctx context.Context, id, userID string) (bool, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
}

// PasswordHasher is implemented by utils.PasswordHasher.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (salt, digest string, err error)
	Verify(ctx context.Context, plain, digest string) bool
	Burn(ctx context.Context, plain string)
}

func utcNow() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }
