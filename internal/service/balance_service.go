package service

import (
	"context"
	"errors"
	"fmt"

	"dialogbot/internal/models"
	"dialogbot/internal/repository"
)

var ErrInvalidAmount = errors.New("amount must be positive")
var ErrInsufficientFunds = errors.New("insufficient funds")

// BalanceService owns the running balance and its append-only transaction
// log. The store guarantees every mutation commits together with exactly one
// transaction row, so the balance always equals the sum of the log.
type BalanceService struct {
	balances repository.BalanceStore
}

func NewBalanceService(balances repository.BalanceStore) *BalanceService {
	return &BalanceService{balances: balances}
}

func (s *BalanceService) Balance(ctx context.Context, userID int64) (int64, error) {
	balance, found, err := s.balances.Balance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	if !found {
		return 0, ErrUserNotFound
	}
	return balance, nil
}

func (s *BalanceService) Deposit(ctx context.Context, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	newBalance, ok, err := s.balances.Deposit(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("deposit: %w", err)
	}
	if !ok {
		return 0, ErrUserNotFound
	}
	return newBalance, nil
}

func (s *BalanceService) Withdraw(ctx context.Context, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	_, found, err := s.balances.Balance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	if !found {
		return 0, ErrUserNotFound
	}
	newBalance, ok, err := s.balances.Withdraw(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("withdraw: %w", err)
	}
	if !ok {
		return 0, ErrInsufficientFunds
	}
	return newBalance, nil
}

func (s *BalanceService) History(ctx context.Context, userID int64) ([]models.Transaction, error) {
	transactions, err := s.balances.History(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("transaction history: %w", err)
	}
	return transactions, nil
}
