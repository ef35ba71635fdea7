package service

import (
	"context"
	"errors"
	"fmt"

	"dialogbot/internal/models"
	"dialogbot/internal/repository"
)

var ErrUserNotFound = errors.New("user not found")
var ErrDuplicateUser = errors.New("user with this telegram id already exists")

type UserService struct {
	users repository.UserStore
}

func NewUserService(users repository.UserStore) *UserService {
	return &UserService{users: users}
}

// Register creates a user for the telegram identity. The telegram id is
// unique across users; a second registration fails with ErrDuplicateUser
// and leaves the first untouched.
func (s *UserService) Register(ctx context.Context, username string, telegramID int64) (*models.User, error) {
	existing, err := s.users.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateUser
	}
	user, err := s.users.Create(ctx, &models.User{
		TelegramID: telegramID,
		Username:   username,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *UserService) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := s.users.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) FindByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) Rename(ctx context.Context, userID int64, username string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := s.users.Rename(ctx, userID, username); err != nil {
		return fmt.Errorf("rename user: %w", err)
	}
	return nil
}

// Delete removes the user and reports whether a row was removed.
func (s *UserService) Delete(ctx context.Context, userID int64) (bool, error) {
	removed, err := s.users.Delete(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return removed, nil
}

func (s *UserService) ListTelegramIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.users.ListTelegramIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list telegram ids: %w", err)
	}
	return ids, nil
}
