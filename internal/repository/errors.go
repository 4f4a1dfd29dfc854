// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// service and handlers to distinguish between different failure scenarios
// without knowing which SQL driver produced them.
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
// Handlers translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique
// index (username, email, role name or permission name).
var ErrDuplicate = errors.New("duplicate")

// ErrConflict is returned when a delete cannot be performed because other
// rows still reference the target, such as deleting a role that users are
// assigned to. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrUnknownRole is returned when a user row points at a missing role.
var ErrUnknownRole = errors.New("unknown role")

// ErrUnknownPermission is returned when a role's permission set names a
// permission that does not exist.
var ErrUnknownPermission = errors.New("unknown permission")

const (
	mysqlDupEntry        = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferenced    = 1452
)

// isDuplicate reports a unique index violation.  The string fallback covers
// the SQLite driver used by tests.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDupEntry
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "1062") || strings.Contains(s, "unique constraint")
}

// isFKViolation reports a foreign key violation in either direction.
func isFKViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlRowIsReferenced || me.Number == mysqlNoReferenced
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
