package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"dialogbot/internal/config"
	"dialogbot/internal/models"
	"dialogbot/internal/repository/stubs"
)

func TestYooKassaWebhookDepositsOnce(t *testing.T) {
	ctx := context.Background()
	store := stubs.NewMemoryStore()
	user, err := store.Users.Create(ctx, &models.User{TelegramID: 100, Username: "alice"})
	require.NoError(t, err)

	balance := NewBalanceService(store.Balances)
	svc := NewPaymentService(config.Config{PaymentCurrency: "RUB"}, store.Payments, balance)

	require.NoError(t, store.Payments.Create(ctx, &models.Payment{
		UserID:         user.ID,
		Provider:       "yookassa",
		ProviderCharge: "pay-123",
		Currency:       "RUB",
		Amount:         29900,
		Status:         "pending",
	}))

	payload := []byte(`{"event":"payment.succeeded","object":{"id":"pay-123","status":"succeeded"}}`)
	require.NoError(t, svc.HandleYooKassaWebhook(ctx, payload))

	got, err := balance.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 29900, got)

	// a replayed webhook must not credit the user twice
	require.NoError(t, svc.HandleYooKassaWebhook(ctx, payload))
	got, err = balance.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 29900, got)
}

func TestYooKassaWebhookFailureUpdatesStatus(t *testing.T) {
	ctx := context.Background()
	store := stubs.NewMemoryStore()
	user, err := store.Users.Create(ctx, &models.User{TelegramID: 100, Username: "alice"})
	require.NoError(t, err)

	balance := NewBalanceService(store.Balances)
	svc := NewPaymentService(config.Config{PaymentCurrency: "RUB"}, store.Payments, balance)

	require.NoError(t, store.Payments.Create(ctx, &models.Payment{
		UserID:         user.ID,
		Provider:       "yookassa",
		ProviderCharge: "pay-456",
		Currency:       "RUB",
		Amount:         29900,
		Status:         "pending",
	}))

	payload := []byte(`{"event":"payment.canceled","object":{"id":"pay-456","status":"canceled"}}`)
	require.NoError(t, svc.HandleYooKassaWebhook(ctx, payload))

	got, err := balance.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, got)

	pmt, err := store.Payments.FindByProviderCharge(ctx, "yookassa", "pay-456")
	require.NoError(t, err)
	require.Equal(t, "canceled", pmt.Status)
}

func TestYooKassaWebhookUnknownPayment(t *testing.T) {
	store := stubs.NewMemoryStore()
	balance := NewBalanceService(store.Balances)
	svc := NewPaymentService(config.Config{}, store.Payments, balance)

	payload := []byte(`{"event":"payment.succeeded","object":{"id":"ghost","status":"succeeded"}}`)
	require.Error(t, svc.HandleYooKassaWebhook(context.Background(), payload))
}
