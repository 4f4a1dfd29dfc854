package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/rbac-admin/internal/model"
)

// RoleRepo manages roles and their permission sets.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

const roleColumns = "id,name,description,created_at,updated_at"

func scanRole(s rowScanner) (model.Role, error) {
	var r model.Role
	err := s.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// NameByID returns only the role name.  The role gate calls this on every
// protected request.
func (r *RoleRepo) NameByID(ctx context.Context, id uint64) (string, error) {
	var name string
	err := r.DB.QueryRowContext(ctx, "SELECT name FROM roles WHERE id=? LIMIT 1", id).Scan(&name)
	return name, notFound(err)
}

// GetByID fetches a role with its permissions.
func (r *RoleRepo) GetByID(ctx context.Context, id uint64) (model.Role, error) {
	role, err := scanRole(r.DB.QueryRowContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE id=? LIMIT 1", id))
	if err != nil {
		return model.Role{}, notFound(err)
	}
	perms, err := r.permissionsFor(ctx, r.DB, []uint64{role.ID})
	if err != nil {
		return model.Role{}, err
	}
	role.Permissions = perms[role.ID]
	return role, nil
}

// GetByName fetches a role by exact name, without permissions.
func (r *RoleRepo) GetByName(ctx context.Context, name string) (model.Role, error) {
	role, err := scanRole(r.DB.QueryRowContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE name=? LIMIT 1", name))
	return role, notFound(err)
}

// List returns roles whose name contains nameLike (all roles when empty),
// each with its permissions.
func (r *RoleRepo) List(ctx context.Context, nameLike string) ([]model.Role, error) {
	q := "SELECT " + roleColumns + " FROM roles"
	var args []any
	if nameLike = strings.TrimSpace(nameLike); nameLike != "" {
		q += " WHERE name LIKE ?"
		args = append(args, "%"+nameLike+"%")
	}
	q += " ORDER BY id"

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	roles := []model.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(roles) == 0 {
		return roles, nil
	}
	ids := make([]uint64, len(roles))
	for i, role := range roles {
		ids[i] = role.ID
	}
	perms, err := r.permissionsFor(ctx, r.DB, ids)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		roles[i].Permissions = perms[roles[i].ID]
	}
	return roles, nil
}

// Create inserts role and attaches permissionIDs in one transaction.
func (r *RoleRepo) Create(ctx context.Context, role *model.Role, permissionIDs []uint64) error {
	now := time.Now().UTC().Truncate(time.Second)
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO roles (name, description, created_at, updated_at) VALUES (?,?,?,?)",
			role.Name, role.Description, now, now)
		if err != nil {
			if isDuplicate(err) {
				return ErrDuplicate
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		role.ID = uint64(id)
		role.CreatedAt, role.UpdatedAt = now, now
		if err := setPermissions(ctx, tx, role.ID, permissionIDs); err != nil {
			return err
		}
		perms, err := r.permissionsFor(ctx, tx, []uint64{role.ID})
		if err != nil {
			return err
		}
		role.Permissions = perms[role.ID]
		return nil
	})
}

// Update writes name and description.  A nil permissionIDs keeps the
// current permission set; a non-nil one (even empty) replaces it.
func (r *RoleRepo) Update(ctx context.Context, role *model.Role, permissionIDs []uint64) error {
	now := time.Now().UTC().Truncate(time.Second)
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var one int
		if err := tx.QueryRowContext(ctx, "SELECT 1 FROM roles WHERE id=?", role.ID).Scan(&one); err != nil {
			return notFound(err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE roles SET name=?, description=?, updated_at=? WHERE id=?",
			role.Name, role.Description, now, role.ID); err != nil {
			if isDuplicate(err) {
				return ErrDuplicate
			}
			return err
		}
		if permissionIDs != nil {
			if _, err := tx.ExecContext(ctx, "DELETE FROM role_permissions WHERE role_id=?", role.ID); err != nil {
				return err
			}
			if err := setPermissions(ctx, tx, role.ID, permissionIDs); err != nil {
				return err
			}
		}
		fresh, err := scanRole(tx.QueryRowContext(ctx,
			"SELECT "+roleColumns+" FROM roles WHERE id=?", role.ID))
		if err != nil {
			return err
		}
		perms, err := r.permissionsFor(ctx, tx, []uint64{role.ID})
		if err != nil {
			return err
		}
		fresh.Permissions = perms[role.ID]
		*role = fresh
		return nil
	})
}

// Delete removes a role and its permission links.  ErrConflict while any
// user is still assigned to it.
func (r *RoleRepo) Delete(ctx context.Context, id uint64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var inUse int64
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE role_id=?", id).Scan(&inUse); err != nil {
			return err
		}
		if inUse > 0 {
			return ErrConflict
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM role_permissions WHERE role_id=?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM roles WHERE id=?", id)
		if err != nil {
			if isFKViolation(err) {
				return ErrConflict
			}
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// permissionsFor loads the permissions of every listed role, keyed by role id.
func (r *RoleRepo) permissionsFor(ctx context.Context, q querier, roleIDs []uint64) (map[uint64][]model.Permission, error) {
	args := make([]any, len(roleIDs))
	for i, id := range roleIDs {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx,
		"SELECT rp.role_id,p.id,p.name,p.description,p.created_at,p.updated_at"+
			" FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id"+
			" WHERE rp.role_id IN ("+placeholders(len(roleIDs))+") ORDER BY p.id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint64][]model.Permission, len(roleIDs))
	for rows.Next() {
		var (
			roleID uint64
			p      model.Permission
		)
		if err := rows.Scan(&roleID, &p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out[roleID] = append(out[roleID], p)
	}
	for _, id := range roleIDs {
		if out[id] == nil {
			out[id] = []model.Permission{}
		}
	}
	return out, rows.Err()
}

// setPermissions links roleID to each permission, ignoring repeats.
func setPermissions(ctx context.Context, tx *sql.Tx, roleID uint64, permissionIDs []uint64) error {
	seen := make(map[uint64]bool, len(permissionIDs))
	for _, pid := range permissionIDs {
		if seen[pid] {
			continue
		}
		seen[pid] = true
		var one int
		if err := tx.QueryRowContext(ctx, "SELECT 1 FROM permissions WHERE id=?", pid).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUnknownPermission
			}
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO role_permissions (role_id, permission_id) VALUES (?,?)", roleID, pid); err != nil {
			if isFKViolation(err) {
				return ErrUnknownPermission
			}
			return err
		}
	}
	return nil
}

func (r *RoleRepo) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
