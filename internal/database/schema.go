package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order at startup.  Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		name          VARCHAR(100) NOT NULL,
		username      VARCHAR(30)  NOT NULL,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		password_salt VARCHAR(64)  NOT NULL,
		role          ENUM('USER','ADMIN') NOT NULL DEFAULT 'USER',
		created_at    DATETIME(3)  NOT NULL,
		updated_at    DATETIME(3)  NOT NULL,
		UNIQUE KEY uq_users_username (username),
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id                 CHAR(36)     NOT NULL PRIMARY KEY,
		user_id            CHAR(36)     NOT NULL,
		device_id          VARCHAR(255) NULL,
		user_agent         VARCHAR(512) NULL,
		refresh_token_hash CHAR(64)     NOT NULL,
		expires_at         DATETIME(3)  NOT NULL,
		revoked_at         DATETIME(3)  NULL,
		created_at         DATETIME(3)  NOT NULL,
		KEY idx_sessions_user (user_id, created_at),
		CONSTRAINT fk_sessions_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS password_reset_tokens (
		id         CHAR(36)    NOT NULL PRIMARY KEY,
		user_id    CHAR(36)    NOT NULL,
		token_hash CHAR(64)    NOT NULL,
		expires_at DATETIME(3) NOT NULL,
		created_at DATETIME(3) NOT NULL,
		UNIQUE KEY uq_reset_token_hash (token_hash),
		KEY idx_reset_expires (expires_at),
		CONSTRAINT fk_reset_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS api_keys (
		id         CHAR(36)     NOT NULL PRIMARY KEY,
		user_id    CHAR(36)     NOT NULL,
		name       VARCHAR(100) NULL,
		key_hash   CHAR(64)     NOT NULL,
		key_prefix VARCHAR(16)  NOT NULL,
		is_active  TINYINT(1)   NOT NULL DEFAULT 1,
		expires_at DATETIME(3)  NULL,
		last_used  DATETIME(3)  NULL,
		created_at DATETIME(3)  NOT NULL,
		UNIQUE KEY uq_api_keys_hash (key_hash),
		KEY idx_api_keys_user (user_id, created_at),
		CONSTRAINT fk_api_keys_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema step %d: %w", i+1, err)
		}
	}
	return nil
}
