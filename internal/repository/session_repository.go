package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/auth-service/internal/model"
)

const sessionColumns = "id,user_id,device_id,user_agent,refresh_token_hash,expires_at,revoked_at,created_at"

// SessionRepo persists sessions.  Revocation sets revoked_at; rows are
// removed only when their user is deleted.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

func scanSession(row interface{ Scan(...any) error }) (model.Session, error) {
	var (
		s         model.Session
		deviceID  sql.NullString
		userAgent sql.NullString
		revokedAt sql.NullTime
	)
	err := row.Scan(&s.ID, &s.UserID, &deviceID, &userAgent, &s.RefreshTokenHash,
		&s.ExpiresAt, &revokedAt, &s.CreatedAt)
	s.DeviceID = deviceID.String
	s.UserAgent = userAgent.String
	s.RevokedAt = nullTimePtr(&revokedAt)
	return s, err
}

// CreateTx inserts a session using the given transaction or connection.
func (r *SessionRepo) CreateTx(ctx context.Context, q dbtx, s model.Session) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO sessions ("+sessionColumns+") VALUES (?,?,?,?,?,?,?,?)",
		s.ID, s.UserID, nullString(s.DeviceID), nullString(s.UserAgent), s.RefreshTokenHash,
		s.ExpiresAt, nil, s.CreatedAt)
	return mapDuplicate(err)
}

// Create inserts a session.
func (r *SessionRepo) Create(ctx context.Context, s model.Session) error {
	return r.CreateTx(ctx, r.DB, s)
}

// FindValid returns the session if it is neither revoked nor expired at
// now, and sql.ErrNoRows otherwise.
func (r *SessionRepo) FindValid(ctx context.Context, id string, now time.Time) (model.Session, error) {
	s, err := scanSession(r.DB.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id=? LIMIT 1", id))
	if err != nil {
		return model.Session{}, err
	}
	if !s.ActiveAt(now) {
		return model.Session{}, sql.ErrNoRows
	}
	return s, nil
}

// Rotate moves an active session to a new refresh token hash and expiry.
// The update only applies while the stored hash still equals oldHash, so a
// superseded refresh token, or the loser of two concurrent refreshes, gets
// false back.
func (r *SessionRepo) Rotate(ctx context.Context, id, oldHash, newHash string, exp, now time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE sessions SET refresh_token_hash=?, expires_at=?
		 WHERE id=? AND refresh_token_hash=? AND revoked_at IS NULL AND expires_at>?`,
		newHash, exp, id, oldHash, now)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// Revoke marks one active session of userID as revoked.  It reports false
// when no such session exists for that user.
func (r *SessionRepo) Revoke(ctx context.Context, id, userID string, now time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET revoked_at=? WHERE id=? AND user_id=? AND revoked_at IS NULL",
		now, id, userID)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// RevokeAllTx revokes every unrevoked session of userID.
func (r *SessionRepo) RevokeAllTx(ctx context.Context, q dbtx, userID string, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx,
		"UPDATE sessions SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		now, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RevokeAll revokes every unrevoked session of userID.
func (r *SessionRepo) RevokeAll(ctx context.Context, userID string, now time.Time) (int64, error) {
	return r.RevokeAllTx(ctx, r.DB, userID, now)
}

// ListActive returns the user's live sessions, newest first.
func (r *SessionRepo) ListActive(ctx context.Context, userID string, now time.Time) ([]model.Session, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+sessionColumns+` FROM sessions
		 WHERE user_id=? AND revoked_at IS NULL AND expires_at>?
		 ORDER BY created_at DESC`,
		userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
