package service

import (
	"context"
	"errors"
	"fmt"

	"dialogbot/internal/models"
	"dialogbot/internal/repository"
)

var ErrDialogNotFound = errors.New("dialog not found")

// DialogModelPatch builds a patch that changes only the dialog's model.
func DialogModelPatch(model models.ModelType) repository.DialogPatch {
	return repository.DialogPatch{ModelType: &model}
}

// DialogRolePatch builds a patch that changes only the dialog's role.
func DialogRolePatch(role models.RoleType) repository.DialogPatch {
	return repository.DialogPatch{RoleType: &role}
}

// DialogLimitPatch builds a patch that changes only the dialog's history limit.
func DialogLimitPatch(limit int) repository.DialogPatch {
	return repository.DialogPatch{HistoryLimit: &limit}
}

type DialogService struct {
	dialogs  repository.DialogStore
	messages repository.MessageStore
}

func NewDialogService(dialogs repository.DialogStore, messages repository.MessageStore) *DialogService {
	return &DialogService{dialogs: dialogs, messages: messages}
}

// Create persists a new dialog and returns its id. Model and role are always
// set at creation.
func (s *DialogService) Create(ctx context.Context, userID int64, modelType models.ModelType, roleType models.RoleType) (int64, error) {
	dialog, err := s.dialogs.Create(ctx, &models.Dialog{
		UserID:    userID,
		ModelType: modelType,
		RoleType:  roleType,
	})
	if err != nil {
		return 0, fmt.Errorf("create dialog: %w", err)
	}
	return dialog.ID, nil
}

func (s *DialogService) Get(ctx context.Context, dialogID int64) (*models.Dialog, error) {
	dialog, err := s.dialogs.GetByID(ctx, dialogID)
	if err != nil {
		return nil, fmt.Errorf("get dialog: %w", err)
	}
	if dialog == nil {
		return nil, ErrDialogNotFound
	}
	return dialog, nil
}

// Update applies only the supplied fields; applying the same patch twice is
// a no-op the second time.
func (s *DialogService) Update(ctx context.Context, dialogID int64, patch repository.DialogPatch) error {
	dialog, err := s.dialogs.GetByID(ctx, dialogID)
	if err != nil {
		return fmt.Errorf("get dialog: %w", err)
	}
	if dialog == nil {
		return ErrDialogNotFound
	}
	if err := s.dialogs.Update(ctx, dialogID, patch); err != nil {
		return fmt.Errorf("update dialog: %w", err)
	}
	return nil
}

// AppendMessage appends one turn to the dialog history. On persistence
// failure nothing is written and the failure is surfaced to the caller.
func (s *DialogService) AppendMessage(ctx context.Context, dialogID, userID int64, role models.MessageRole, text string) (*models.DialogMessage, error) {
	dialog, err := s.dialogs.GetByID(ctx, dialogID)
	if err != nil {
		return nil, fmt.Errorf("get dialog: %w", err)
	}
	if dialog == nil {
		return nil, ErrDialogNotFound
	}
	msg, err := s.messages.AppendText(ctx, &models.DialogMessage{
		DialogID: dialogID,
		UserID:   userID,
		Role:     role,
		Body:     text,
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// History returns the dialog's messages ordered by timestamp ascending.
func (s *DialogService) History(ctx context.Context, dialogID int64) ([]models.DialogMessage, error) {
	dialog, err := s.dialogs.GetByID(ctx, dialogID)
	if err != nil {
		return nil, fmt.Errorf("get dialog: %w", err)
	}
	if dialog == nil {
		return nil, ErrDialogNotFound
	}
	messages, err := s.messages.ListForDialog(ctx, dialogID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

func (s *DialogService) ListForUser(ctx context.Context, userID int64) ([]models.Dialog, error) {
	dialogs, err := s.dialogs.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list dialogs: %w", err)
	}
	return dialogs, nil
}
