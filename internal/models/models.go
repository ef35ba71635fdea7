package models

import "time"

type ModelType string

const (
	ModelGPT4o     ModelType = "gpt-4o"
	ModelGPT4oMini ModelType = "gpt-4o-mini"
	ModelO1        ModelType = "o1"
	ModelO1Mini    ModelType = "o1-mini"
)

// KnownModel reports whether a model type is one the bot offers.
func KnownModel(m ModelType) bool {
	switch m {
	case ModelGPT4o, ModelGPT4oMini, ModelO1, ModelO1Mini:
		return true
	}
	return false
}

type RoleType string

const (
	RoleGeneral    RoleType = "general"
	RoleTranslator RoleType = "translator"
	RoleEditor     RoleType = "editor"
)

// KnownRole reports whether a role preset is one the bot offers.
func KnownRole(r RoleType) bool {
	switch r {
	case RoleGeneral, RoleTranslator, RoleEditor:
		return true
	}
	return false
}

// SystemPrompt returns the system message used for a dialog role preset.
func (r RoleType) SystemPrompt() string {
	switch r {
	case RoleTranslator:
		return "You are a professional translator. Translate the user's messages preserving tone and register."
	case RoleEditor:
		return "You are a copy editor. Improve grammar and clarity of the user's text without changing its meaning."
	default:
		return "You are a helpful assistant."
	}
}

// MessageRole is the explicit author of a stored dialog message. The author
// is never inferred from the user id.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

type TransactionKind string

const (
	TransactionDeposit    TransactionKind = "deposit"
	TransactionWithdrawal TransactionKind = "withdrawal"
)

type User struct {
	ID         int64
	TelegramID int64
	Username   string
	Balance    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Dialog struct {
	ID           int64
	UserID       int64
	ModelType    ModelType
	RoleType     RoleType
	HistoryLimit *int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type DialogMessage struct {
	ID        int64
	DialogID  int64
	UserID    int64
	Role      MessageRole
	Body      string
	CreatedAt time.Time
}

// ImageMessage stores an image-generation request. ImageURL stays empty until
// the generation succeeds.
type ImageMessage struct {
	ID        int64
	DialogID  int64
	UserID    int64
	Prompt    string
	ImageURL  string
	CreatedAt time.Time
}

// Transaction amounts are signed: deposits positive, withdrawals negative.
type Transaction struct {
	ID        int64
	UserID    int64
	Amount    int64
	Kind      TransactionKind
	CreatedAt time.Time
}

type Subscription struct {
	ID          int64
	UserID      int64
	Plan        string
	StartDate   time.Time
	EndDate     time.Time
	MaxRequests *int
	Features    []string
	CreatedAt   time.Time
}

// ActiveAt reports whether the subscription covers the given instant.
func (s Subscription) ActiveAt(t time.Time) bool {
	return !t.Before(s.StartDate) && t.Before(s.EndDate)
}

// HasFeature reports whether the subscription's plan conditions include the feature.
func (s Subscription) HasFeature(feature string) bool {
	for _, f := range s.Features {
		if f == feature {
			return true
		}
	}
	return false
}

type Payment struct {
	ID             int64
	UserID         int64
	Provider       string
	ProviderCharge string
	Currency       string
	Amount         int64
	Status         string
	RawPayload     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
