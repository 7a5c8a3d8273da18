package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/auth-service/internal/model"
)

const userColumns = "id,name,username,email,password_hash,password_salt,role,created_at,updated_at"

type UserRepo struct {
	DB       *sql.DB
	Sessions *SessionRepo
}

func NewUserRepo(db *sql.DB, sessions *SessionRepo) *UserRepo {
	return &UserRepo{DB: db, Sessions: sessions}
}

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Username, &u.Email, &u.PasswordHash, &u.PasswordSalt,
		&role, &u.CreatedAt, &u.UpdatedAt)
	u.Role = model.Role(role)
	return u, err
}

func (r *UserRepo) createTx(ctx context.Context, q dbtx, u model.User) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?,?)",
		u.ID, u.Name, u.Username, u.Email, u.PasswordHash, u.PasswordSalt, string(u.Role), u.CreatedAt, u.UpdatedAt)
	return mapDuplicate(err)
}

// Create inserts a user without a session (admin-initiated accounts).
func (r *UserRepo) Create(ctx context.Context, u model.User) error {
	return r.createTx(ctx, r.DB, u)
}

// CreateWithSession inserts the user and its first session in one
// transaction.  Either both rows exist afterwards or neither does.
func (r *UserRepo) CreateWithSession(ctx context.Context, u model.User, s model.Session) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := r.createTx(ctx, tx, u); err != nil {
			return err
		}
		return r.Sessions.CreateTx(ctx, tx, s)
	})
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByEmail fetches a user by exact email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByLogin fetches a user whose username or email equals login.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? OR email=? ORDER BY username=? DESC LIMIT 1",
		login, login, login))
}

// FindConflict reports which of username or email is already taken by a
// user other than excludeID.  Empty values are not checked.  The result is
// "" when there is no conflict; username wins when both collide.
func (r *UserRepo) FindConflict(ctx context.Context, username, email, excludeID string) (string, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT username, email FROM users WHERE (username=? OR email=?) AND id<>? LIMIT 2",
		username, email, excludeID)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	field := ""
	for rows.Next() {
		var un, em string
		if err := rows.Scan(&un, &em); err != nil {
			return "", err
		}
		switch {
		case username != "" && un == username:
			field = "username"
		case email != "" && em == email && field == "":
			field = "email"
		}
	}
	return field, rows.Err()
}

func userWhere(f model.UserFilter) (string, []any) {
	var conds []string
	var args []any
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		conds = append(conds, "(LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?)")
		args = append(args, like, like, like)
	}
	if f.Role != "" {
		conds = append(conds, "role=?")
		args = append(args, string(f.Role))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// List returns one page of users, newest first.
func (r *UserRepo) List(ctx context.Context, f model.UserFilter) ([]model.User, error) {
	where, args := userWhere(f)
	args = append(args, f.Limit, f.Offset)
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users"+where+" ORDER BY created_at DESC LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Count returns how many users match the filter, ignoring paging.
func (r *UserRepo) Count(ctx context.Context, f model.UserFilter) (int, error) {
	where, args := userWhere(f)
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&n)
	return n, err
}

// Update applies a patch and returns sql.ErrNoRows when the user is gone.
func (r *UserRepo) Update(ctx context.Context, id string, p model.UserPatch, now time.Time) error {
	sets := []string{"updated_at=?"}
	args := []any{now}
	if p.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, *p.Name)
	}
	if p.Username != nil {
		sets = append(sets, "username=?")
		args = append(args, *p.Username)
	}
	if p.Email != nil {
		sets = append(sets, "email=?")
		args = append(args, *p.Email)
	}
	if p.Role != nil {
		sets = append(sets, "role=?")
		args = append(args, string(*p.Role))
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ",")+" WHERE id=?", args...)
	if err != nil {
		return mapDuplicate(err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return sql.ErrNoRows
	}
	return nil
}

// UpdatePasswordTx replaces the password digest inside a transaction.
func (r *UserRepo) UpdatePasswordTx(ctx context.Context, tx *sql.Tx, id, salt, hash string, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET password_hash=?, password_salt=?, updated_at=? WHERE id=?",
		hash, salt, now, id)
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
	return nil
}

// Delete removes a user; sessions, reset tokens and API keys cascade.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
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
	return nil
}
