package repository

import (
	"context"
	"time"

	"dialogbot/internal/models"
)

// DialogPatch carries the optional fields of a dialog update. Nil fields are
// left untouched.
type DialogPatch struct {
	ModelType    *models.ModelType
	RoleType     *models.RoleType
	HistoryLimit *int
}

// UserStore persists users. Lookups return (nil, nil) when no row matches.
type UserStore interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	Rename(ctx context.Context, id int64, username string) error
	Delete(ctx context.Context, id int64) (bool, error)
	ListTelegramIDs(ctx context.Context) ([]int64, error)
}

// DialogStore persists dialogs.
type DialogStore interface {
	Create(ctx context.Context, dialog *models.Dialog) (*models.Dialog, error)
	GetByID(ctx context.Context, id int64) (*models.Dialog, error)
	Update(ctx context.Context, id int64, patch DialogPatch) error
	ListForUser(ctx context.Context, userID int64) ([]models.Dialog, error)
}

// MessageStore persists the append-only per-dialog message history and
// image-generation records.
type MessageStore interface {
	AppendText(ctx context.Context, msg *models.DialogMessage) (*models.DialogMessage, error)
	ListForDialog(ctx context.Context, dialogID int64) ([]models.DialogMessage, error)
	CreateImage(ctx context.Context, msg *models.ImageMessage) (*models.ImageMessage, error)
	ListImagesForDialog(ctx context.Context, dialogID int64) ([]models.ImageMessage, error)
	// CountGenerationsSince counts completed generations (assistant replies and
	// stored images) for the user from the given instant, for quota accounting.
	CountGenerationsSince(ctx context.Context, userID int64, since time.Time) (int, error)
}

// BalanceStore maintains the running balance and its transaction log as one
// atomic unit: a mutation and its ledger row commit together or not at all.
type BalanceStore interface {
	Balance(ctx context.Context, userID int64) (int64, bool, error)
	// Deposit atomically increments the balance and appends a deposit
	// transaction. ok is false when the user does not exist.
	Deposit(ctx context.Context, userID, amount int64) (newBalance int64, ok bool, err error)
	// Withdraw atomically decrements the balance and appends a withdrawal
	// transaction. ok is false when the conditional update matched no row,
	// either because the user is missing or the balance is short.
	Withdraw(ctx context.Context, userID, amount int64) (newBalance int64, ok bool, err error)
	History(ctx context.Context, userID int64) ([]models.Transaction, error)
	SumTransactions(ctx context.Context, userID int64) (int64, error)
}

// SubscriptionStore keeps at most one subscription row per user; Replace
// enforces that by deleting before inserting.
type SubscriptionStore interface {
	FindByUser(ctx context.Context, userID int64) (*models.Subscription, error)
	Replace(ctx context.Context, sub *models.Subscription) (*models.Subscription, error)
	UpdateDates(ctx context.Context, id int64, start, end time.Time) error
	DeleteByUser(ctx context.Context, userID int64) (bool, error)
	ListForUser(ctx context.Context, userID int64) ([]models.Subscription, error)
}

// PaymentStore records provider payment attempts and their outcomes.
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	UpdateStatus(ctx context.Context, paymentID int64, status, payload string) error
	FindByProviderCharge(ctx context.Context, provider, chargeID string) (*models.Payment, error)
}
