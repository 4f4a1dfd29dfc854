package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/rbac-admin/internal/model"
)

// UserRepo is the credential store: users with their bcrypt hashes and
// role assignment.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `u.id,u.username,u.email,u.phone,u.avatar,u.password,u.role_id,u.created_at,u.updated_at,
	r.id,r.name,r.description,r.created_at,r.updated_at`

const userFrom = ` FROM users u LEFT JOIN roles r ON r.id = u.role_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (model.User, error) {
	var (
		u        model.User
		roleID   sql.NullInt64
		roleName sql.NullString
		roleDesc sql.NullString
		roleCrt  sql.NullTime
		roleUpd  sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.Avatar, &u.PasswordHash, &u.RoleID,
		&u.CreatedAt, &u.UpdatedAt, &roleID, &roleName, &roleDesc, &roleCrt, &roleUpd)
	if err != nil {
		return model.User{}, err
	}
	if roleID.Valid {
		r := &model.Role{ID: uint64(roleID.Int64), Name: roleName.String, CreatedAt: roleCrt.Time, UpdatedAt: roleUpd.Time}
		if roleDesc.Valid {
			d := roleDesc.String
			r.Description = &d
		}
		u.Role = r
	}
	return u, nil
}

// Create inserts u and fills in its ID and timestamps.  A unique index
// violation on username or email yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, phone, avatar, password, role_id, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?)",
		u.Username, u.Email, u.Phone, u.Avatar, u.PasswordHash, u.RoleID, now, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		if isFKViolation(err) {
			return ErrUnknownRole
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// GetByID fetches a user by id together with its role.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+userFrom+" WHERE u.id=? LIMIT 1", id))
	return u, notFound(err)
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+userFrom+" WHERE u.username=? LIMIT 1", username))
	return u, notFound(err)
}

// GetByEmail fetches a user by exact email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+userFrom+" WHERE u.email=? LIMIT 1", email))
	return u, notFound(err)
}

// List returns every user matching f, ordered by id.
func (r *UserRepo) List(ctx context.Context, f model.UserFilter) ([]model.User, error) {
	var (
		where []string
		args  []any
	)
	like := func(col, v string) {
		if v = strings.TrimSpace(v); v != "" {
			where = append(where, col+" LIKE ?")
			args = append(args, "%"+v+"%")
		}
	}
	like("u.username", f.Username)
	like("u.email", f.Email)
	like("u.phone", f.Phone)

	q := "SELECT " + userColumns + userFrom
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY u.id"

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update writes every mutable column of u.  ErrNotFound if the user does
// not exist, ErrDuplicate on a username/email clash.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET username=?, email=?, phone=?, avatar=?, password=?, role_id=?, updated_at=? WHERE id=?",
		u.Username, u.Email, u.Phone, u.Avatar, u.PasswordHash, u.RoleID, now, u.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		if isFKViolation(err) {
			return ErrUnknownRole
		}
		return err
	}
	// MySQL reports 0 affected rows when nothing changed, so confirm existence.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var one int
		if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=?", u.ID).Scan(&one); err != nil {
			return notFound(err)
		}
	}
	u.UpdatedAt = now
	return nil
}

// Delete removes one user.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
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

// DeleteBatch removes every listed user and returns the ids that actually
// went, in ascending order.  Unknown ids are ignored.
func (r *UserRepo) DeleteBatch(ctx context.Context, ids []uint64) ([]uint64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }() // no-op after Commit

	found, err := existingIDs(ctx, tx, ids)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	args := make([]any, len(found))
	for i, id := range found {
		args[i] = id
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id IN ("+placeholders(len(found))+")", args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return found, nil
}

// existingIDs returns which of ids are present in users.  Rows are closed
// before returning so the caller can keep using tx.
func existingIDs(ctx context.Context, tx *sql.Tx, ids []uint64) ([]uint64, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := tx.QueryContext(ctx,
		"SELECT id FROM users WHERE id IN ("+placeholders(len(ids))+") ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Count returns the number of users.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// placeholders returns "?,?,...,?" with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
