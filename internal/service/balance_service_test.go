package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"dialogbot/internal/models"
	"dialogbot/internal/repository/stubs"
)

func newBalanceFixture(t *testing.T) (*stubs.MemoryStore, *BalanceService, *models.User) {
	t.Helper()
	store := stubs.NewMemoryStore()
	user, err := store.Users.Create(context.Background(), &models.User{TelegramID: 100, Username: "alice"})
	require.NoError(t, err)
	return store, NewBalanceService(store.Balances), user
}

func TestBalanceDepositWithdraw(t *testing.T) {
	ctx := context.Background()
	store, svc, user := newBalanceFixture(t)

	balance, err := svc.Deposit(ctx, user.ID, 100)
	require.NoError(t, err)
	require.EqualValues(t, 100, balance)

	balance, err = svc.Withdraw(ctx, user.ID, 30)
	require.NoError(t, err)
	require.EqualValues(t, 70, balance)

	history, err := svc.History(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, models.TransactionDeposit, history[0].Kind)
	require.EqualValues(t, 100, history[0].Amount)
	require.Equal(t, models.TransactionWithdrawal, history[1].Kind)
	require.EqualValues(t, -30, history[1].Amount)

	// balance always equals the sum of the transaction log
	sum, err := store.Balances.SumTransactions(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 70, sum)
}

func TestBalanceWithdrawInsufficient(t *testing.T) {
	ctx := context.Background()
	store, svc, user := newBalanceFixture(t)

	_, err := svc.Deposit(ctx, user.ID, 10)
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, user.ID, 50)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 10, balance)

	// the failed withdrawal must not leave a ledger row
	history, err := store.Balances.History(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestBalanceRejectsNonPositiveAmounts(t *testing.T) {
	ctx := context.Background()
	store, svc, user := newBalanceFixture(t)

	_, err := svc.Deposit(ctx, user.ID, 0)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.Deposit(ctx, user.ID, -5)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.Withdraw(ctx, user.ID, 0)
	require.ErrorIs(t, err, ErrInvalidAmount)

	history, err := store.Balances.History(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestBalanceUnknownUser(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := newBalanceFixture(t)

	_, err := svc.Balance(ctx, 999)
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.Deposit(ctx, 999, 100)
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.Withdraw(ctx, 999, 100)
	require.ErrorIs(t, err, ErrUserNotFound)
}
