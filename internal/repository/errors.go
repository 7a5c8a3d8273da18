// Package repository persists users, sessions, password reset tokens and
// API keys in MySQL.  Lookups that find nothing return sql.ErrNoRows, and
// unique-key violations surface as *DuplicateKeyError so the service layer
// can report which credential collided.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// DuplicateKeyError reports a unique constraint violation on Field.
type DuplicateKeyError struct {
	Field string
}

func (e *DuplicateKeyError) Error() string { return e.Field + " already exists" }

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mapDuplicate turns a MySQL duplicate-entry error into *DuplicateKeyError.
// Other errors pass through unchanged.
func mapDuplicate(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return err
	}
	// "Duplicate entry 'x' for key 'users.uq_users_email'": only the key
	// name is inspected, the entry value is user input.
	key := strings.ToLower(me.Message)
	if i := strings.LastIndex(key, "for key "); i >= 0 {
		key = key[i:]
	}
	switch {
	case strings.Contains(key, "username"):
		return &DuplicateKeyError{Field: "username"}
	case strings.Contains(key, "email"):
		return &DuplicateKeyError{Field: "email"}
	case strings.Contains(key, "hash"):
		return &DuplicateKeyError{Field: "token"}
	}
	return &DuplicateKeyError{Field: "id"}
}

// affected returns true when the statement touched at least one row.
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// withTx runs fn inside a transaction, committing only when fn succeeds.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTimePtr(t *sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
