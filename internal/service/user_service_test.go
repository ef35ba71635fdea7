package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"dialogbot/internal/repository/stubs"
)

func TestUserRegisterAndFind(t *testing.T) {
	ctx := context.Background()
	store := stubs.NewMemoryStore()
	svc := NewUserService(store.Users)

	user, err := svc.Register(ctx, "alice", 100)
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.EqualValues(t, 100, user.TelegramID)
	require.Zero(t, user.Balance)

	found, err := svc.FindByTelegramID(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)
}

func TestUserRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	store := stubs.NewMemoryStore()
	svc := NewUserService(store.Users)

	first, err := svc.Register(ctx, "alice", 100)
	require.NoError(t, err)

	_, err = svc.Register(ctx, "impostor", 100)
	require.ErrorIs(t, err, ErrDuplicateUser)

	// the original row is untouched
	found, err := svc.FindByTelegramID(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)
	require.Equal(t, "alice", found.Username)
}

func TestUserFindMissing(t *testing.T) {
	ctx := context.Background()
	store := stubs.NewMemoryStore()
	svc := NewUserService(store.Users)

	_, err := svc.FindByTelegramID(ctx, 42)
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.FindByID(ctx, 42)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRename(t *testing.T) {
	ctx := context.Background()
	store := stubs.NewMemoryStore()
	svc := NewUserService(store.Users)

	user, err := svc.Register(ctx, "alice", 100)
	require.NoError(t, err)

	require.NoError(t, svc.Rename(ctx, user.ID, "alice2"))

	found, err := svc.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "alice2", found.Username)

	require.ErrorIs(t, svc.Rename(ctx, 999, "ghost"), ErrUserNotFound)
}

func TestUserDelete(t *testing.T) {
	ctx := context.Background()
	store := stubs.NewMemoryStore()
	svc := NewUserService(store.Users)

	user, err := svc.Register(ctx, "alice", 100)
	require.NoError(t, err)

	removed, err := svc.Delete(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = svc.Delete(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, removed)
}
