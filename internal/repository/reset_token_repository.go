package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/auth-service/internal/model"
)

// ResetTokenRepo stores password reset tokens by hash.
type ResetTokenRepo struct {
	DB       *sql.DB
	Users    *UserRepo
	Sessions *SessionRepo
}

func NewResetTokenRepo(db *sql.DB, users *UserRepo, sessions *SessionRepo) *ResetTokenRepo {
	return &ResetTokenRepo{DB: db, Users: users, Sessions: sessions}
}

// Create inserts a reset token row.
func (r *ResetTokenRepo) Create(ctx context.Context, t model.PasswordResetToken) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_reset_tokens (id,user_id,token_hash,expires_at,created_at) VALUES (?,?,?,?,?)",
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt)
	return mapDuplicate(err)
}

// FindValid returns the unexpired token with this hash whose user still
// exists, or sql.ErrNoRows.
func (r *ResetTokenRepo) FindValid(ctx context.Context, tokenHash string, now time.Time) (model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	err := r.DB.QueryRowContext(ctx,
		`SELECT t.id, t.user_id, t.token_hash, t.expires_at, t.created_at
		 FROM password_reset_tokens t JOIN users u ON u.id = t.user_id
		 WHERE t.token_hash=? AND t.expires_at>? LIMIT 1`,
		tokenHash, now).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	return t, err
}

// Consume redeems a token: the user's password is replaced, the token row
// is deleted and every session of the user is revoked, all in one
// transaction.  A token already consumed by a concurrent call yields
// sql.ErrNoRows and nothing changes.
func (r *ResetTokenRepo) Consume(ctx context.Context, t model.PasswordResetToken, salt, hash string, now time.Time) (int64, error) {
	var revoked int64
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM password_reset_tokens WHERE id=? AND expires_at>?", t.ID, now)
		if err != nil {
			return err
		}
		ok, err := affected(res)
		if err != nil {
			return err
		}
		if !ok {
			return sql.ErrNoRows
		}
		if err := r.Users.UpdatePasswordTx(ctx, tx, t.UserID, salt, hash, now); err != nil {
			return err
		}
		revoked, err = r.Sessions.RevokeAllTx(ctx, tx, t.UserID, now)
		return err
	})
	return revoked, err
}

// PurgeExpired deletes tokens whose window has closed.
func (r *ResetTokenRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM password_reset_tokens WHERE expires_at<=?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
