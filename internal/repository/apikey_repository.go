package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/auth-service/internal/model"
)

const apiKeyColumns = "id,user_id,name,key_hash,key_prefix,is_active,expires_at,last_used,created_at"

type APIKeyRepo struct{ DB *sql.DB }

func NewAPIKeyRepo(db *sql.DB) *APIKeyRepo { return &APIKeyRepo{DB: db} }

func scanAPIKey(row interface{ Scan(...any) error }) (model.APIKey, error) {
	var (
		k         model.APIKey
		name      sql.NullString
		expiresAt sql.NullTime
		lastUsed  sql.NullTime
	)
	err := row.Scan(&k.ID, &k.UserID, &name, &k.KeyHash, &k.KeyPrefix, &k.IsActive,
		&expiresAt, &lastUsed, &k.CreatedAt)
	if name.Valid {
		k.Name = &name.String
	}
	k.ExpiresAt = nullTimePtr(&expiresAt)
	k.LastUsed = nullTimePtr(&lastUsed)
	return k, err
}

func (r *APIKeyRepo) Create(ctx context.Context, k model.APIKey) error {
	var exp sql.NullTime
	if k.ExpiresAt != nil {
		exp = sql.NullTime{Time: *k.ExpiresAt, Valid: true}
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO api_keys ("+apiKeyColumns+") VALUES (?,?,?,?,?,?,?,?,?)",
		k.ID, k.UserID, nullStringPtr(k.Name), k.KeyHash, k.KeyPrefix, k.IsActive, exp, nil, k.CreatedAt)
	return mapDuplicate(err)
}

// GetByHash looks a key up by the SHA-256 of its raw value.
func (r *APIKeyRepo) GetByHash(ctx context.Context, keyHash string) (model.APIKey, error) {
	return scanAPIKey(r.DB.QueryRowContext(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE key_hash=? LIMIT 1", keyHash))
}

// TouchLastUsed stamps the key as used at now.
func (r *APIKeyRepo) TouchLastUsed(ctx context.Context, id string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE api_keys SET last_used=? WHERE id=?", now, id)
	return err
}

// ListForUser returns the user's keys, newest first.
func (r *APIKeyRepo) ListForUser(ctx context.Context, userID string) ([]model.APIKey, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE user_id=? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Deactivate flips is_active off for a key owned by userID.  The row is kept.
func (r *APIKeyRepo) Deactivate(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE api_keys SET is_active=0 WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// Delete removes a key owned by userID.
func (r *APIKeyRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM api_keys WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return false, err
	}
	return affected(res)
}
