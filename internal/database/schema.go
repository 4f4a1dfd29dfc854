package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// schema creates the RBAC tables when they do not exist yet.  Column names
// match what the repositories query.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name        VARCHAR(64)  NOT NULL,
		description VARCHAR(255) NULL,
		created_at  DATETIME     NOT NULL,
		updated_at  DATETIME     NOT NULL,
		UNIQUE KEY uq_roles_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS permissions (
		id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name        VARCHAR(128) NOT NULL,
		description VARCHAR(255) NULL,
		created_at  DATETIME     NOT NULL,
		updated_at  DATETIME     NOT NULL,
		UNIQUE KEY uq_permissions_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS role_permissions (
		role_id       BIGINT UNSIGNED NOT NULL,
		permission_id BIGINT UNSIGNED NOT NULL,
		PRIMARY KEY (role_id, permission_id),
		CONSTRAINT fk_rp_role FOREIGN KEY (role_id) REFERENCES roles(id),
		CONSTRAINT fk_rp_permission FOREIGN KEY (permission_id) REFERENCES permissions(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS users (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		username   VARCHAR(64)  NOT NULL,
		email      VARCHAR(255) NOT NULL,
		phone      VARCHAR(32)  NULL,
		avatar     VARCHAR(512) NULL,
		password   VARCHAR(255) NOT NULL,
		role_id    BIGINT UNSIGNED NOT NULL,
		created_at DATETIME     NOT NULL,
		updated_at DATETIME     NOT NULL,
		UNIQUE KEY uq_users_username (username),
		UNIQUE KEY uq_users_email (email),
		CONSTRAINT fk_users_role FOREIGN KEY (role_id) REFERENCES roles(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// DefaultRoles are seeded by Migrate.  The names line up with the default
// admin allow-list and the default registration role.
var DefaultRoles = []string{"super", "admin", "user"}

// Migrate creates missing tables and seeds the default roles.  It is safe
// to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	now := time.Now().UTC()
	for _, name := range DefaultRoles {
		if _, err := db.ExecContext(ctx,
			"INSERT IGNORE INTO roles (name, created_at, updated_at) VALUES (?,?,?)",
			name, now, now); err != nil {
			return fmt.Errorf("seed role %q: %w", name, err)
		}
	}
	return nil
}
