package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/rbac-admin/internal/model"
	"github.com/iliyamo/rbac-admin/internal/testutil"
)

func newUser(name string) *model.User {
	return &model.User{
		Username:     name,
		Email:        name + "@x.io",
		PasswordHash: "hash-" + name,
		RoleID:       testutil.RoleUser,
	}
}

func TestUserRepo_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(testutil.NewDB(t))

	u := newUser("alice")
	require.NoError(t, repo.Create(ctx, u))
	require.NotZero(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "hash-alice", got.PasswordHash)
	assert.Nil(t, got.Phone)
	require.NotNil(t, got.Role)
	assert.Equal(t, "user", got.Role.Name)

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	byEmail, err := repo.GetByEmail(ctx, "alice@x.io")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
}

func TestUserRepo_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(testutil.NewDB(t))

	_, err := repo.GetByID(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByEmail(ctx, "ghost@x.io")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, 42), ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &model.User{ID: 42, Username: "g", Email: "g@x.io", RoleID: testutil.RoleUser}), ErrNotFound)
}

func TestUserRepo_DuplicateUsernameAndEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(testutil.NewDB(t))
	require.NoError(t, repo.Create(ctx, newUser("alice")))

	dupName := newUser("alice")
	dupName.Email = "other@x.io"
	assert.ErrorIs(t, repo.Create(ctx, dupName), ErrDuplicate)

	dupEmail := newUser("bob")
	dupEmail.Email = "alice@x.io"
	assert.ErrorIs(t, repo.Create(ctx, dupEmail), ErrDuplicate)
}

func TestUserRepo_UnknownRole(t *testing.T) {
	repo := NewUserRepo(testutil.NewDB(t))
	u := newUser("alice")
	u.RoleID = 99
	assert.ErrorIs(t, repo.Create(context.Background(), u), ErrUnknownRole)
}

func TestUserRepo_ListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(testutil.NewDB(t))
	for _, n := range []string{"alice", "alina", "bob"} {
		u := newUser(n)
		if n == "bob" {
			phone := "555-0100"
			u.Phone = &phone
		}
		require.NoError(t, repo.Create(ctx, u))
	}

	all, err := repo.List(ctx, model.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	ali, err := repo.List(ctx, model.UserFilter{Username: "ali"})
	require.NoError(t, err)
	require.Len(t, ali, 2)
	assert.Equal(t, "alice", ali[0].Username)

	byPhone, err := repo.List(ctx, model.UserFilter{Phone: "0100"})
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, "bob", byPhone[0].Username)

	none, err := repo.List(ctx, model.UserFilter{Email: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestUserRepo_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(testutil.NewDB(t))
	a, b := newUser("alice"), newUser("bob")
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	a.Email = "alice@new.io"
	a.RoleID = testutil.RoleAdmin
	require.NoError(t, repo.Update(ctx, a))
	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@new.io", got.Email)
	assert.Equal(t, "admin", got.Role.Name)

	b.Username = "alice"
	assert.ErrorIs(t, repo.Update(ctx, b), ErrDuplicate)

	require.NoError(t, repo.Delete(ctx, a.ID))
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUserRepo_DeleteBatch(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(testutil.NewDB(t))
	var ids []uint64
	for _, n := range []string{"a", "b", "c"} {
		u := newUser(n)
		require.NoError(t, repo.Create(ctx, u))
		ids = append(ids, u.ID)
	}

	gone, err := repo.DeleteBatch(ctx, []uint64{ids[2], 999, ids[0], ids[0]})
	require.NoError(t, err)
	assert.Equal(t, []uint64{ids[0], ids[2]}, gone)

	gone, err = repo.DeleteBatch(ctx, []uint64{ids[0], 999})
	require.NoError(t, err)
	assert.Empty(t, gone)

	gone, err = repo.DeleteBatch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, gone)

	left, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, left)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}
