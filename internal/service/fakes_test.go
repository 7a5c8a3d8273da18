package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/utils"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

// memDB is an in-memory stand-in for the MySQL repositories.
type memDB struct {
	mu       sync.Mutex
	users    map[string]model.User
	sessions map[string]model.Session
	resets   map[string]model.PasswordResetToken
	keys     map[string]model.APIKey
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[string]model.User{},
		sessions: map[string]model.Session{},
		resets:   map[string]model.PasswordResetToken{},
		keys:     map[string]model.APIKey{},
	}
}

type memUsers struct{ db *memDB }

func (m memUsers) insert(u model.User) error {
	for _, x := range m.db.users {
		if x.Username == u.Username {
			return &repository.DuplicateKeyError{Field: "username"}
		}
		if x.Email == u.Email {
			return &repository.DuplicateKeyError{Field: "email"}
		}
	}
	m.db.users[u.ID] = u
	return nil
}

func (m memUsers) Create(_ context.Context, u model.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.insert(u)
}

func (m memUsers) CreateWithSession(_ context.Context, u model.User, s model.Session) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if err := m.insert(u); err != nil {
		return err
	}
	m.db.sessions[s.ID] = s
	return nil
}

func (m memUsers) find(match func(model.User) bool) (model.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.users {
		if match(u) {
			return u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (m memUsers) GetByID(_ context.Context, id string) (model.User, error) {
	return m.find(func(u model.User) bool { return u.ID == id })
}

func (m memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	return m.find(func(u model.User) bool { return u.Email == email })
}

func (m memUsers) GetByLogin(_ context.Context, login string) (model.User, error) {
	if u, err := m.find(func(u model.User) bool { return u.Username == login }); err == nil {
		return u, nil
	}
	return m.find(func(u model.User) bool { return u.Email == login })
}

func (m memUsers) FindConflict(_ context.Context, username, email, excludeID string) (string, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	field := ""
	for _, u := range m.db.users {
		if u.ID == excludeID {
			continue
		}
		if username != "" && u.Username == username {
			return "username", nil
		}
		if email != "" && u.Email == email {
			field = "email"
		}
	}
	return field, nil
}

func (m memUsers) filter(f model.UserFilter) []model.User {
	var out []model.User
	q := strings.ToLower(f.Search)
	for _, u := range m.db.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(u.Name), q) &&
			!strings.Contains(strings.ToLower(u.Username), q) &&
			!strings.Contains(strings.ToLower(u.Email), q) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m memUsers) List(_ context.Context, f model.UserFilter) ([]model.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	all := m.filter(f)
	if f.Offset >= len(all) {
		return nil, nil
	}
	end := f.Offset + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[f.Offset:end], nil
}

func (m memUsers) Count(_ context.Context, f model.UserFilter) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return len(m.filter(f)), nil
}

func (m memUsers) Update(_ context.Context, id string, p model.UserPatch, now time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	u.UpdatedAt = now
	m.db.users[id] = u
	return nil
}

func (m memUsers) Delete(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.db.users, id)
	for k, s := range m.db.sessions {
		if s.UserID == id {
			delete(m.db.sessions, k)
		}
	}
	return nil
}

type memSessions struct{ db *memDB }

func (m memSessions) Create(_ context.Context, s model.Session) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.sessions[s.ID] = s
	return nil
}

func (m memSessions) FindValid(_ context.Context, id string, now time.Time) (model.Session, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.sessions[id]
	if !ok || !s.ActiveAt(now) {
		return model.Session{}, sql.ErrNoRows
	}
	return s, nil
}

func (m memSessions) Rotate(_ context.Context, id, oldHash, newHash string, exp, now time.Time) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.sessions[id]
	if !ok || !s.ActiveAt(now) || s.RefreshTokenHash != oldHash {
		return false, nil
	}
	s.RefreshTokenHash = newHash
	s.ExpiresAt = exp
	m.db.sessions[id] = s
	return true, nil
}

func (m memSessions) Revoke(_ context.Context, id, userID string, now time.Time) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.sessions[id]
	if !ok || s.UserID != userID || s.RevokedAt != nil {
		return false, nil
	}
	s.RevokedAt = &now
	m.db.sessions[id] = s
	return true, nil
}

func (m memSessions) revokeAll(userID string, now time.Time) int64 {
	var n int64
	for id, s := range m.db.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
			m.db.sessions[id] = s
			n++
		}
	}
	return n
}

func (m memSessions) RevokeAll(_ context.Context, userID string, now time.Time) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.revokeAll(userID, now), nil
}

func (m memSessions) ListActive(_ context.Context, userID string, now time.Time) ([]model.Session, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []model.Session
	for _, s := range m.db.sessions {
		if s.UserID == userID && s.ActiveAt(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memResets struct{ db *memDB }

func (m memResets) Create(_ context.Context, t model.PasswordResetToken) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.resets[t.ID] = t
	return nil
}

func (m memResets) FindValid(_ context.Context, tokenHash string, now time.Time) (model.PasswordResetToken, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, t := range m.db.resets {
		if _, ok := m.db.users[t.UserID]; ok && t.TokenHash == tokenHash && now.Before(t.ExpiresAt) {
			return t, nil
		}
	}
	return model.PasswordResetToken{}, sql.ErrNoRows
}

func (m memResets) Consume(_ context.Context, t model.PasswordResetToken, salt, hash string, now time.Time) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	cur, ok := m.db.resets[t.ID]
	if !ok || !now.Before(cur.ExpiresAt) {
		return 0, sql.ErrNoRows
	}
	u, ok := m.db.users[t.UserID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	delete(m.db.resets, t.ID)
	u.PasswordHash, u.PasswordSalt, u.UpdatedAt = hash, salt, now
	m.db.users[u.ID] = u
	return memSessions{m.db}.revokeAll(u.ID, now), nil
}

func (m memResets) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var n int64
	for id, t := range m.db.resets {
		if !now.Before(t.ExpiresAt) {
			delete(m.db.resets, id)
			n++
		}
	}
	return n, nil
}

type memKeys struct{ db *memDB }

func (m memKeys) Create(_ context.Context, k model.APIKey) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.keys[k.ID] = k
	return nil
}

func (m memKeys) GetByHash(_ context.Context, keyHash string) (model.APIKey, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, k := range m.db.keys {
		if k.KeyHash == keyHash {
			return k, nil
		}
	}
	return model.APIKey{}, sql.ErrNoRows
}

func (m memKeys) TouchLastUsed(_ context.Context, id string, now time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if k, ok := m.db.keys[id]; ok {
		k.LastUsed = &now
		m.db.keys[id] = k
	}
	return nil
}

func (m memKeys) ListForUser(_ context.Context, userID string) ([]model.APIKey, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []model.APIKey
	for _, k := range m.db.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m memKeys) Deactivate(_ context.Context, id, userID string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	k, ok := m.db.keys[id]
	if !ok || k.UserID != userID {
		return false, nil
	}
	k.IsActive = false
	m.db.keys[id] = k
	return true, nil
}

func (m memKeys) Delete(_ context.Context, id, userID string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	k, ok := m.db.keys[id]
	if !ok || k.UserID != userID {
		return false, nil
	}
	delete(m.db.keys, id)
	return true, nil
}

// recorder captures audit events.
type recorder struct {
	mu     sync.Mutex
	events []queue.AuthEvent
}

func (r *recorder) Record(ev queue.AuthEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []queue.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queue.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type testEnv struct {
	db       *memDB
	codec    *utils.TokenCodec
	sessions *SessionRegistry
	auth     *AuthService
	keys     *APIKeyService
	users    *UserService
	authn    *Authenticator
	audit    *recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newMemDB()
	codec := utils.NewTokenCodec(testSecret, 15*time.Minute, 7*24*time.Hour)
	hasher := utils.NewPasswordHasher(bcrypt.MinCost, 4)
	rec := &recorder{}
	sessions := NewSessionRegistry(memSessions{db}, codec.RefreshTTL())
	keys := NewAPIKeyService(memKeys{db}, memUsers{db}, rec, nil)
	return &testEnv{
		db:       db,
		codec:    codec,
		sessions: sessions,
		auth: NewAuthService(AuthDeps{
			Users:    memUsers{db},
			Sessions: sessions,
			Resets:   memResets{db},
			Hasher:   hasher,
			Codec:    codec,
			ResetTTL: time.Hour,
			Audit:    rec,
		}),
		keys:  keys,
		users: NewUserService(memUsers{db}, hasher, rec),
		authn: NewAuthenticator(keys, sessions, memUsers{db}, codec, nil),
		audit: rec,
	}
}

func (e *testEnv) signUp(t *testing.T, username string) AuthResult {
	t.Helper()
	res, err := e.auth.SignUp(context.Background(), SignUpInput{
		Name:     "User " + username,
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	}, model.DeviceMeta{UserAgent: "test"})
	require.NoError(t, err)
	return res
}

func (e *testEnv) promote(t *testing.T, id string) Principal {
	t.Helper()
	e.db.mu.Lock()
	u := e.db.users[id]
	u.Role = model.RoleAdmin
	e.db.users[id] = u
	e.db.mu.Unlock()
	return Principal{UserID: u.ID, Username: u.Username, Email: u.Email, Role: model.RoleAdmin}
}

func principalOf(u model.User) Principal {
	return Principal{UserID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}
