package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/rbac-admin/internal/model"
)

// PermissionRepo manages the permission catalog.
type PermissionRepo struct{ DB *sql.DB }

func NewPermissionRepo(db *sql.DB) *PermissionRepo { return &PermissionRepo{DB: db} }

const permissionColumns = "id,name,description,created_at,updated_at"

func scanPermission(s rowScanner) (model.Permission, error) {
	var p model.Permission
	err := s.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetByID fetches one permission.
func (r *PermissionRepo) GetByID(ctx context.Context, id uint64) (model.Permission, error) {
	p, err := scanPermission(r.DB.QueryRowContext(ctx,
		"SELECT "+permissionColumns+" FROM permissions WHERE id=? LIMIT 1", id))
	return p, notFound(err)
}

// List returns permissions whose name contains nameLike, ordered by id.
func (r *PermissionRepo) List(ctx context.Context, nameLike string) ([]model.Permission, error) {
	q := "SELECT " + permissionColumns + " FROM permissions"
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
	defer rows.Close()

	perms := []model.Permission{}
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// Create inserts p.  ErrDuplicate when the name is taken.
func (r *PermissionRepo) Create(ctx context.Context, p *model.Permission) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO permissions (name, description, created_at, updated_at) VALUES (?,?,?,?)",
		p.Name, p.Description, now, now)
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
	p.ID = uint64(id)
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// Update writes name and description.
func (r *PermissionRepo) Update(ctx context.Context, p *model.Permission) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE permissions SET name=?, description=?, updated_at=? WHERE id=?",
		p.Name, p.Description, now, p.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := r.GetByID(ctx, p.ID); err != nil {
			return err
		}
	}
	fresh, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = fresh
	return nil
}

// Delete removes a permission.  ErrConflict while a role still holds it.
func (r *PermissionRepo) Delete(ctx context.Context, id uint64) error {
	var inUse int64
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM role_permissions WHERE permission_id=?", id).Scan(&inUse); err != nil {
		return err
	}
	if inUse > 0 {
		return ErrConflict
	}
	res, err := r.DB.ExecContext(ctx, "DELETE FROM permissions WHERE id=?", id)
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
}

// Count returns the number of permissions.
func (r *PermissionRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM permissions").Scan(&n)
	return n, err
}
