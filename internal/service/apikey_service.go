package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/utils"
)

const (
	apiKeyPrefix    = "sk_"
	apiKeyBytes     = 32
	apiKeyShownLen  = 8
	lastUsedTimeout = 5 * time.Second
)

// CreatedAPIKey carries the raw key.  It is returned exactly once, at
// creation.
type CreatedAPIKey struct {
	model.APIKey
	Key string
}

// APIKeyService issues and validates long-lived API keys.
type APIKeyService struct {
	keys  APIKeyStore
	users UserStore
	audit Auditor
	log   *logrus.Logger
	now   func() time.Time
}

func NewAPIKeyService(keys APIKeyStore, users UserStore, audit Auditor, log *logrus.Logger) *APIKeyService {
	if audit == nil {
		audit = nopAuditor{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &APIKeyService{keys: keys, users: users, audit: audit, log: log, now: utcNow}
}

// Create mints a key for userID.  Only its SHA-256 digest is stored.
func (s *APIKeyService) Create(ctx context.Context, userID string, name *string, expiresAt *time.Time) (CreatedAPIKey, error) {
	secret, err := utils.RandomBase64URL(apiKeyBytes)
	if err != nil {
		return CreatedAPIKey{}, err
	}
	raw := apiKeyPrefix + secret

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		name = &trimmed
		if trimmed == "" {
			name = nil
		}
	}
	if expiresAt != nil {
		utc := expiresAt.UTC()
		expiresAt = &utc
	}

	k := model.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		KeyHash:   utils.SHA256Hex(raw),
		KeyPrefix: raw[:apiKeyShownLen],
		IsActive:  true,
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	}
	if err := s.keys.Create(ctx, k); err != nil {
		return CreatedAPIKey{}, fmt.Errorf("store api key: %w", err)
	}

	s.audit.Record(queue.AuthEvent{
		Type: queue.EventAPIKeyCreated, UserID: userID, OccurredAt: k.CreatedAt,
		Detail: map[string]string{"key_id": k.ID, "prefix": k.KeyPrefix},
	})
	return CreatedAPIKey{APIKey: k, Key: raw}, nil
}

// Validate resolves a raw key to its owner.  Unknown, inactive and expired
// keys all yield ErrNotFound.  The last-used stamp is written in the
// background and never fails the request.
func (s *APIKeyService) Validate(ctx context.Context, raw string) (Principal, error) {
	if !strings.HasPrefix(raw, apiKeyPrefix) {
		return Principal{}, ErrNotFound
	}
	k, err := s.keys.GetByHash(ctx, utils.SHA256Hex(raw))
	if errors.Is(err, sql.ErrNoRows) {
		return Principal{}, ErrNotFound
	}
	if err != nil {
		return Principal{}, err
	}
	now := s.now()
	if !k.UsableAt(now) {
		return Principal{}, ErrNotFound
	}

	u, err := s.users.GetByID(ctx, k.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return Principal{}, ErrNotFound
	}
	if err != nil {
		return Principal{}, err
	}

	go s.touch(k.ID, now)

	return Principal{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Method:   AuthMethodAPIKey,
	}, nil
}

func (s *APIKeyService) touch(id string, now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), lastUsedTimeout)
	defer cancel()
	if err := s.keys.TouchLastUsed(ctx, id, now); err != nil {
		s.log.WithError(err).WithField("key_id", id).Warn("api key last_used update failed")
	}
}

// List returns the caller's keys, newest first, without secrets.
func (s *APIKeyService) List(ctx context.Context, userID string) ([]model.APIKey, error) {
	return s.keys.ListForUser(ctx, userID)
}

// Revoke deactivates a key owned by userID.
func (s *APIKeyService) Revoke(ctx context.Context, id, userID string) error {
	ok, err := s.keys.Deactivate(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.audit.Record(queue.AuthEvent{
		Type: queue.EventAPIKeyRevoked, UserID: userID, OccurredAt: s.now(),
		Detail: map[string]string{"key_id": id},
	})
	return nil
}

// Delete removes a key owned by userID.
func (s *APIKeyService) Delete(ctx context.Context, id, userID string) error {
	ok, err := s.keys.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.audit.Record(queue.AuthEvent{
		Type: queue.EventAPIKeyDeleted, UserID: userID, OccurredAt: s.now(),
		Detail: map[string]string{"key_id": id},
	})
	return nil
}
