// Package stubs provides an in-memory implementation of the repository
// store interfaces for tests. Semantics mirror the MySQL implementations:
// lookups return (nil, nil) when absent, balance mutations pair with exactly
// one transaction row, and Replace keeps at most one subscription per user.
package stubs

import (
	"context"
	"sort"
	"sync"
	"time"

	"dialogbot/internal/models"
	"dialogbot/internal/repository"
)

type core struct {
	mu sync.Mutex

	nextID        int64
	users         map[int64]*models.User
	dialogs       map[int64]*models.Dialog
	messages      []models.DialogMessage
	images        []models.ImageMessage
	transactions  []models.Transaction
	subscriptions map[int64]*models.Subscription // keyed by user id
	payments      map[int64]*models.Payment
}

func (c *core) id() int64 {
	c.nextID++
	return c.nextID
}

// MemoryStore bundles in-memory stubs for every store interface over one
// shared state, so a test wires services exactly like main does.
type MemoryStore struct {
	Users         *UserStub
	Dialogs       *DialogStub
	Messages      *MessageStub
	Balances      *BalanceStub
	Subscriptions *SubscriptionStub
	Payments      *PaymentStub
}

func NewMemoryStore() *MemoryStore {
	c := &core{
		users:         make(map[int64]*models.User),
		dialogs:       make(map[int64]*models.Dialog),
		subscriptions: make(map[int64]*models.Subscription),
		payments:      make(map[int64]*models.Payment),
	}
	return &MemoryStore{
		Users:         &UserStub{c: c},
		Dialogs:       &DialogStub{c: c},
		Messages:      &MessageStub{c: c},
		Balances:      &BalanceStub{c: c},
		Subscriptions: &SubscriptionStub{c: c},
		Payments:      &PaymentStub{c: c},
	}
}

// --- UserStub ---

type UserStub struct {
	c *core
}

func (s *UserStub) Create(ctx context.Context, user *models.User) (*models.User, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	u := *user
	u.ID = s.c.id()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	s.c.users[u.ID] = &u
	copied := u
	return &copied, nil
}

func (s *UserStub) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	for _, u := range s.c.users {
		if u.TelegramID == telegramID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *UserStub) FindByID(ctx context.Context, id int64) (*models.User, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if u, ok := s.c.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (s *UserStub) Rename(ctx context.Context, id int64, username string) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if u, ok := s.c.users[id]; ok {
		u.Username = username
		u.UpdatedAt = time.Now()
	}
	return nil
}

func (s *UserStub) Delete(ctx context.Context, id int64) (bool, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if _, ok := s.c.users[id]; !ok {
		return false, nil
	}
	delete(s.c.users, id)
	return true, nil
}

func (s *UserStub) ListTelegramIDs(ctx context.Context) ([]int64, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	ids := make([]int64, 0, len(s.c.users))
	for _, u := range s.c.users {
		ids = append(ids, u.TelegramID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// --- DialogStub ---

type DialogStub struct {
	c *core
}

func (s *DialogStub) Create(ctx context.Context, dialog *models.Dialog) (*models.Dialog, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	d := *dialog
	d.ID = s.c.id()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	s.c.dialogs[d.ID] = &d
	copied := d
	return &copied, nil
}

func (s *DialogStub) GetByID(ctx context.Context, id int64) (*models.Dialog, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if d, ok := s.c.dialogs[id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, nil
}

func (s *DialogStub) Update(ctx context.Context, id int64, patch repository.DialogPatch) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	d, ok := s.c.dialogs[id]
	if !ok {
		return nil
	}
	if patch.ModelType != nil {
		d.ModelType = *patch.ModelType
	}
	if patch.RoleType != nil {
		d.RoleType = *patch.RoleType
	}
	if patch.HistoryLimit != nil {
		v := *patch.HistoryLimit
		d.HistoryLimit = &v
	}
	d.UpdatedAt = time.Now()
	return nil
}

func (s *DialogStub) ListForUser(ctx context.Context, userID int64) ([]models.Dialog, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	var dialogs []models.Dialog
	for _, d := range s.c.dialogs {
		if d.UserID == userID {
			dialogs = append(dialogs, *d)
		}
	}
	sort.Slice(dialogs, func(i, j int) bool { return dialogs[i].ID < dialogs[j].ID })
	return dialogs, nil
}

// --- MessageStub ---

type MessageStub struct {
	c *core
}

func (s *MessageStub) AppendText(ctx context.Context, msg *models.DialogMessage) (*models.DialogMessage, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	stored := *msg
	stored.ID = s.c.id()
	stored.CreatedAt = time.Now()
	s.c.messages = append(s.c.messages, stored)
	copied := stored
	return &copied, nil
}

func (s *MessageStub) ListForDialog(ctx context.Context, dialogID int64) ([]models.DialogMessage, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	var out []models.DialogMessage
	for _, msg := range s.c.messages {
		if msg.DialogID == dialogID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *MessageStub) CreateImage(ctx context.Context, msg *models.ImageMessage) (*models.ImageMessage, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	stored := *msg
	stored.ID = s.c.id()
	stored.CreatedAt = time.Now()
	s.c.images = append(s.c.images, stored)
	copied := stored
	return &copied, nil
}

func (s *MessageStub) ListImagesForDialog(ctx context.Context, dialogID int64) ([]models.ImageMessage, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	var out []models.ImageMessage
	for _, msg := range s.c.images {
		if msg.DialogID == dialogID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *MessageStub) CountGenerationsSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	count := 0
	for _, msg := range s.c.messages {
		if msg.UserID == userID && msg.Role == models.MessageRoleAssistant && !msg.CreatedAt.Before(since) {
			count++
		}
	}
	for _, msg := range s.c.images {
		if msg.UserID == userID && msg.ImageURL != "" && !msg.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// --- BalanceStub ---

type BalanceStub struct {
	c *core
}

func (s *BalanceStub) Balance(ctx context.Context, userID int64) (int64, bool, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	u, ok := s.c.users[userID]
	if !ok {
		return 0, false, nil
	}
	return u.Balance, true, nil
}

func (s *BalanceStub) Deposit(ctx context.Context, userID, amount int64) (int64, bool, error) {
	return s.apply(userID, amount, models.TransactionDeposit)
}

func (s *BalanceStub) Withdraw(ctx context.Context, userID, amount int64) (int64, bool, error) {
	return s.apply(userID, -amount, models.TransactionWithdrawal)
}

func (s *BalanceStub) apply(userID, delta int64, kind models.TransactionKind) (int64, bool, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	u, ok := s.c.users[userID]
	if !ok {
		return 0, false, nil
	}
	if u.Balance+delta < 0 {
		return u.Balance, false, nil
	}
	u.Balance += delta
	u.UpdatedAt = time.Now()
	s.c.transactions = append(s.c.transactions, models.Transaction{
		ID:        s.c.id(),
		UserID:    userID,
		Amount:    delta,
		Kind:      kind,
		CreatedAt: time.Now(),
	})
	return u.Balance, true, nil
}

func (s *BalanceStub) History(ctx context.Context, userID int64) ([]models.Transaction, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	var out []models.Transaction
	for _, t := range s.c.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *BalanceStub) SumTransactions(ctx context.Context, userID int64) (int64, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	var sum int64
	for _, t := range s.c.transactions {
		if t.UserID == userID {
			sum += t.Amount
		}
	}
	return sum, nil
}

// --- SubscriptionStub ---

type SubscriptionStub struct {
	c *core
}

func (s *SubscriptionStub) FindByUser(ctx context.Context, userID int64) (*models.Subscription, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if sub, ok := s.c.subscriptions[userID]; ok {
		copied := *sub
		return &copied, nil
	}
	return nil, nil
}

func (s *SubscriptionStub) Replace(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	stored := *sub
	stored.ID = s.c.id()
	stored.CreatedAt = time.Now()
	s.c.subscriptions[stored.UserID] = &stored
	copied := stored
	return &copied, nil
}

func (s *SubscriptionStub) UpdateDates(ctx context.Context, id int64, start, end time.Time) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	for _, sub := range s.c.subscriptions {
		if sub.ID == id {
			sub.StartDate = start
			sub.EndDate = end
		}
	}
	return nil
}

func (s *SubscriptionStub) DeleteByUser(ctx context.Context, userID int64) (bool, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if _, ok := s.c.subscriptions[userID]; !ok {
		return false, nil
	}
	delete(s.c.subscriptions, userID)
	return true, nil
}

func (s *SubscriptionStub) ListForUser(ctx context.Context, userID int64) ([]models.Subscription, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	var out []models.Subscription
	if sub, ok := s.c.subscriptions[userID]; ok {
		out = append(out, *sub)
	}
	return out, nil
}

// --- PaymentStub ---

type PaymentStub struct {
	c *core
}

func (s *PaymentStub) Create(ctx context.Context, payment *models.Payment) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	payment.ID = s.c.id()
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt
	stored := *payment
	s.c.payments[stored.ID] = &stored
	return nil
}

func (s *PaymentStub) UpdateStatus(ctx context.Context, paymentID int64, status, payload string) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if p, ok := s.c.payments[paymentID]; ok {
		p.Status = status
		p.RawPayload = payload
		p.UpdatedAt = time.Now()
	}
	return nil
}

func (s *PaymentStub) FindByProviderCharge(ctx context.Context, provider, chargeID string) (*models.Payment, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	for _, p := range s.c.payments {
		if p.Provider == provider && p.ProviderCharge == chargeID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}
