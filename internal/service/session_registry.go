package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/auth-service/internal/model"
)

// SessionRegistry owns the session lifecycle: ACTIVE sessions are rotated
// in place on refresh and end either REVOKED (explicitly) or EXPIRED (found
// stale on lookup; nothing sweeps them).
type SessionRegistry struct {
	store SessionStore
	ttl   time.Duration
	now   func() time.Time
}

func NewSessionRegistry(store SessionStore, ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{store: store, ttl: ttl, now: utcNow}
}

// Prepare allocates an unsaved session for userID expiring one TTL from
// now.  Callers sign tokens against its ID, fill RefreshTokenHash, then
// persist it with Create or inside a user-creation transaction.
func (r *SessionRegistry) Prepare(userID string, meta model.DeviceMeta) model.Session {
	now := r.now()
	return model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		DeviceID:  meta.DeviceID,
		UserAgent: meta.UserAgent,
		ExpiresAt: now.Add(r.ttl),
		CreatedAt: now,
	}
}

// Create persists a prepared session.
func (r *SessionRegistry) Create(ctx context.Context, s model.Session) error {
	return r.store.Create(ctx, s)
}

// FindValid returns the session when it is ACTIVE, ErrNotFound otherwise.
func (r *SessionRegistry) FindValid(ctx context.Context, id string) (model.Session, error) {
	s, err := r.store.FindValid(ctx, id, r.now())
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	return s, err
}

// Rotate gives an ACTIVE session a new refresh hash and a fresh expiry while
// keeping its id.  presentedHash must match the stored hash; otherwise the
// refresh token was superseded (or the session ended) and ErrNotFound is
// returned.
func (r *SessionRegistry) Rotate(ctx context.Context, s model.Session, presentedHash, newHash string, exp time.Time) (model.Session, error) {
	ok, err := r.store.Rotate(ctx, s.ID, presentedHash, newHash, exp, r.now())
	if err != nil {
		return model.Session{}, err
	}
	if !ok {
		return model.Session{}, ErrNotFound
	}
	s.RefreshTokenHash = newHash
	s.ExpiresAt = exp
	return s, nil
}

// Revoke ends one of userID's sessions.  Someone else's session id, an
// unknown id and an already revoked session all yield ErrNotFound.
func (r *SessionRegistry) Revoke(ctx context.Context, id, userID string) error {
	ok, err := r.store.Revoke(ctx, id, userID, r.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// RevokeAll ends every session of userID and reports how many were live.
func (r *SessionRegistry) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return r.store.RevokeAll(ctx, userID, r.now())
}

// List returns userID's ACTIVE sessions, newest first.
func (r *SessionRegistry) List(ctx context.Context, userID string) ([]model.Session, error) {
	return r.store.ListActive(ctx, userID, r.now())
}
