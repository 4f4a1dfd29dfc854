package repository

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/rbac-admin/internal/model"
	"github.com/iliyamo/rbac-admin/internal/testutil"
)

func createPermissions(t *testing.T, repo *PermissionRepo, names ...string) []uint64 {
	t.Helper()
	var ids []uint64
	for _, n := range names {
		p := &model.Permission{Name: n}
		require.NoError(t, repo.Create(context.Background(), p))
		ids = append(ids, p.ID)
	}
	return ids
}

func TestRoleRepo_SeededRoles(t *testing.T) {
	ctx := context.Background()
	repo := NewRoleRepo(testutil.NewDB(t))

	name, err := repo.NameByID(ctx, testutil.RoleSuper)
	require.NoError(t, err)
	assert.Equal(t, "super", name)

	_, err = repo.NameByID(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	user, err := repo.GetByName(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, testutil.RoleUser, user.ID)
}

func TestRoleRepo_CreateWithPermissions(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	roles, perms := NewRoleRepo(db), NewPermissionRepo(db)
	pids := createPermissions(t, perms, "user:read", "user:write")

	desc := "editors"
	role := &model.Role{Name: "editor", Description: &desc}
	require.NoError(t, roles.Create(ctx, role, []uint64{pids[0], pids[1], pids[0]}))
	require.Len(t, role.Permissions, 2)

	got, err := roles.GetByID(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, "editors", *got.Description)
	assert.Equal(t, "user:read", got.Permissions[0].Name)

	assert.ErrorIs(t, roles.Create(ctx, &model.Role{Name: "editor"}, nil), ErrDuplicate)
}

func TestRoleRepo_CreateUnknownPermissionRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewRoleRepo(testutil.NewDB(t))

	err := repo.Create(ctx, &model.Role{Name: "ghostly"}, []uint64{404})
	assert.ErrorIs(t, err, ErrUnknownPermission)

	_, err = repo.GetByName(ctx, "ghostly")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoleRepo_UpdatePermissionSet(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	roles, perms := NewRoleRepo(db), NewPermissionRepo(db)
	pids := createPermissions(t, perms, "a", "b", "c")

	role := &model.Role{Name: "ops"}
	require.NoError(t, roles.Create(ctx, role, pids[:2]))

	// nil keeps the current set
	role.Name = "operators"
	require.NoError(t, roles.Update(ctx, role, nil))
	assert.Equal(t, "operators", role.Name)
	assert.Len(t, role.Permissions, 2)

	// non-nil replaces it
	require.NoError(t, roles.Update(ctx, role, []uint64{pids[2]}))
	require.Len(t, role.Permissions, 1)
	assert.Equal(t, "c", role.Permissions[0].Name)

	require.NoError(t, roles.Update(ctx, role, []uint64{}))
	assert.Empty(t, role.Permissions)

	assert.ErrorIs(t, roles.Update(ctx, &model.Role{ID: 99, Name: "x"}, nil), ErrNotFound)
	assert.ErrorIs(t, roles.Update(ctx, &model.Role{ID: role.ID, Name: "admin"}, nil), ErrDuplicate)
}

func TestRoleRepo_List(t *testing.T) {
	ctx := context.Background()
	repo := NewRoleRepo(testutil.NewDB(t))

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.NotNil(t, all[0].Permissions)

	some, err := repo.List(ctx, "min")
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "admin", some[0].Name)
}

func TestRoleRepo_DeleteInUseConflicts(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	roles, users := NewRoleRepo(db), NewUserRepo(db)
	require.NoError(t, users.Create(ctx, newUser("alice")))

	assert.ErrorIs(t, roles.Delete(ctx, testutil.RoleUser), ErrConflict)
	assert.ErrorIs(t, roles.Delete(ctx, 99), ErrNotFound)
}

func TestRoleRepo_DeleteRemovesLinks(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	roles, perms := NewRoleRepo(db), NewPermissionRepo(db)
	pids := createPermissions(t, perms, "a")

	role := &model.Role{Name: "temp"}
	require.NoError(t, roles.Create(ctx, role, pids))

	// still linked, so the permission cannot go first
	assert.ErrorIs(t, perms.Delete(ctx, pids[0]), ErrConflict)

	require.NoError(t, roles.Delete(ctx, role.ID))
	require.NoError(t, perms.Delete(ctx, pids[0]))
}

func TestPermissionRepo_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewPermissionRepo(testutil.NewDB(t))

	p := &model.Permission{Name: "role:read"}
	require.NoError(t, repo.Create(ctx, p))
	assert.ErrorIs(t, repo.Create(ctx, &model.Permission{Name: "role:read"}), ErrDuplicate)

	desc := "read roles"
	p.Description = &desc
	require.NoError(t, repo.Update(ctx, p))
	assert.Equal(t, "read roles", *p.Description)

	list, err := repo.List(ctx, "role")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, repo.Delete(ctx, p.ID))
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &model.Permission{ID: p.ID, Name: "gone"}), ErrNotFound)
}

func TestTokenDenylist_Disabled(t *testing.T) {
	ctx := context.Background()
	d := NewTokenDenylist(nil, "")

	assert.False(t, d.Enabled())
	require.NoError(t, d.Revoke(ctx, "jti", time.Minute))
	revoked, err := d.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestTokenDenylist_StoreErrorSurfaces(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	d := NewTokenDenylist(rdb, "test:revoked")

	_, err := d.IsRevoked(context.Background(), "jti")
	assert.Error(t, err)

	// already expired tokens never touch the store
	assert.NoError(t, d.Revoke(context.Background(), "jti", 0))
}
