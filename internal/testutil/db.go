// Package testutil provides an in-memory SQL store for package tests.  It
// runs the repositories' SQL against SQLite with the same table layout as
// the MySQL schema in internal/database.
package testutil

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

var schema = []string{
	`CREATE TABLE roles (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT     NOT NULL UNIQUE,
		description TEXT     NULL,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	)`,
	`CREATE TABLE permissions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT     NOT NULL UNIQUE,
		description TEXT     NULL,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	)`,
	`CREATE TABLE role_permissions (
		role_id       INTEGER NOT NULL REFERENCES roles(id),
		permission_id INTEGER NOT NULL REFERENCES permissions(id),
		PRIMARY KEY (role_id, permission_id)
	)`,
	`CREATE TABLE users (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		username   TEXT     NOT NULL UNIQUE,
		email      TEXT     NOT NULL UNIQUE,
		phone      TEXT     NULL,
		avatar     TEXT     NULL,
		password   TEXT     NOT NULL,
		role_id    INTEGER  NOT NULL REFERENCES roles(id),
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
}

// Seeded role ids, in insertion order.
const (
	RoleSuper uint64 = iota + 1
	RoleAdmin
	RoleUser
)

var dbSeq atomic.Int64

// NewDB opens a fresh in-memory database with the RBAC schema and the
// roles super, admin and user.  The database is closed when the test ends.
func NewDB(t testing.TB) *sql.DB {
	t.Helper()

	// A named shared-cache memory db per call keeps tests isolated.
	dsn := fmt.Sprintf("file:rbac%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", dbSeq.Add(1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("schema: %v", err)
		}
	}
	now := time.Now().UTC()
	for _, name := range []string{"super", "admin", "user"} {
		if _, err := db.Exec(
			"INSERT INTO roles (name, created_at, updated_at) VALUES (?,?,?)",
			name, now, now); err != nil {
			t.Fatalf("seed role %s: %v", name, err)
		}
	}
	return db
}
