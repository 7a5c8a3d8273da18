package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// CreateUserInput is what an administrator supplies for a new account.
type CreateUserInput struct {
	Name     string
	Username string
	Email    string
	Password string
	Role     model.Role
}

// ListUsersQuery selects one page of the user listing.
type ListUsersQuery struct {
	Page   int
	Limit  int
	Search string
	Role   model.Role
}

// UserPage is a page of users plus paging totals.
type UserPage struct {
	Users      []model.User
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// UserService manages accounts on behalf of authenticated principals.
type UserService struct {
	users  UserStore
	hasher PasswordHasher
	audit  Auditor
	now    func() time.Time
}

func NewUserService(users UserStore, hasher PasswordHasher, audit Auditor) *UserService {
	if audit == nil {
		audit = nopAuditor{}
	}
	return &UserService{users: users, hasher: hasher, audit: audit, now: utcNow}
}

func (s *UserService) record(t queue.EventType, actor Principal, userID string, detail map[string]string) {
	s.audit.Record(queue.AuthEvent{
		Type:       t,
		UserID:     userID,
		ActorID:    actor.UserID,
		Detail:     detail,
		OccurredAt: s.now(),
	})
}

// Create adds an account.  Only administrators may call it.
func (s *UserService) Create(ctx context.Context, actor Principal, in CreateUserInput) (model.User, error) {
	if !HasRole(actor, model.RoleAdmin) {
		return model.User{}, ErrForbidden
	}
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	field, err := s.users.FindConflict(ctx, in.Username, in.Email, "")
	if err != nil {
		return model.User{}, err
	}
	if field != "" {
		return model.User{}, &DuplicateCredentialError{Field: field}
	}

	salt, digest, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	u := model.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: digest,
		PasswordSalt: salt,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return model.User{}, asDuplicate(err)
	}
	s.record(queue.EventUserCreated, actor, u.ID, map[string]string{"role": string(u.Role)})
	return u, nil
}

// Get returns an account the actor may see: its own, or any for admins.
func (s *UserService) Get(ctx context.Context, actor Principal, id string) (model.User, error) {
	if !CanActOn(actor, id) {
		return model.User{}, ErrForbidden
	}
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// List returns one page of users.  The page query and the count run
// concurrently.
func (s *UserService) List(ctx context.Context, actor Principal, q ListUsersQuery) (UserPage, error) {
	if !HasRole(actor, model.RoleAdmin) {
		return UserPage{}, ErrForbidden
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageLimit
	}
	if q.Limit > maxPageLimit {
		q.Limit = maxPageLimit
	}
	f := model.UserFilter{
		Search: strings.TrimSpace(q.Search),
		Role:   q.Role,
		Limit:  q.Limit,
		Offset: (q.Page - 1) * q.Limit,
	}

	var (
		users []model.User
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.users.List(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.users.Count(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return UserPage{}, err
	}

	if users == nil {
		users = []model.User{}
	}
	return UserPage{
		Users:      users,
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: (total + q.Limit - 1) / q.Limit,
	}, nil
}

// Update applies a patch to an account the actor may modify.  Changing the
// role requires ADMIN.
func (s *UserService) Update(ctx context.Context, actor Principal, id string, p model.UserPatch) (model.User, error) {
	if !CanActOn(actor, id) {
		return model.User{}, ErrForbidden
	}
	if p.Role != nil && !HasRole(actor, model.RoleAdmin) {
		return model.User{}, ErrForbidden
	}
	p = trimPatch(p)
	if p.Empty() {
		return model.User{}, ErrNothingToUpdate
	}

	if p.Username != nil || p.Email != nil {
		var username, email string
		if p.Username != nil {
			username = *p.Username
		}
		if p.Email != nil {
			email = *p.Email
		}
		field, err := s.users.FindConflict(ctx, username, email, id)
		if err != nil {
			return model.User{}, err
		}
		if field != "" {
			return model.User{}, &DuplicateCredentialError{Field: field}
		}
	}

	err := s.users.Update(ctx, id, p, s.now())
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, asDuplicate(err)
	}

	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	detail := map[string]string{}
	if p.Role != nil {
		detail["role"] = string(*p.Role)
	}
	s.record(queue.EventUserUpdated, actor, id, detail)
	return u, nil
}

// UpdateMe is Update on the actor's own account.
func (s *UserService) UpdateMe(ctx context.Context, actor Principal, p model.UserPatch) (model.User, error) {
	return s.Update(ctx, actor, actor.UserID, p)
}

// Delete removes an account.  Admins only, and never their own.
func (s *UserService) Delete(ctx context.Context, actor Principal, id string) error {
	if !HasRole(actor, model.RoleAdmin) {
		return ErrForbidden
	}
	if actor.UserID == id {
		return ErrSelfDelete
	}
	err := s.users.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	s.record(queue.EventUserDeleted, actor, id, nil)
	return nil
}

func trimPatch(p model.UserPatch) model.UserPatch {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	p.Name = trim(p.Name)
	p.Username = trim(p.Username)
	p.Email = trim(p.Email)
	return p
}
