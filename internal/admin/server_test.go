package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"dialogbot/internal/config"
	"dialogbot/internal/models"
	"dialogbot/internal/repository/stubs"
	"dialogbot/internal/service"
)

type adminFixture struct {
	server *Server
	store  *stubs.MemoryStore
	user   *models.User
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	store := stubs.NewMemoryStore()
	user, err := store.Users.Create(context.Background(), &models.User{TelegramID: 100, Username: "alice"})
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := service.NewUserService(store.Users)
	balance := service.NewBalanceService(store.Balances)
	subscriptions := service.NewSubscriptionService(store.Subscriptions)
	payments := service.NewPaymentService(config.Config{}, store.Payments, balance)

	server := NewServer(":0", "admin", "secret", log, users, balance, subscriptions, payments, nil)
	return &adminFixture{server: server, store: store, user: user}
}

func (f *adminFixture) do(t *testing.T, method, path string, body any, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if auth {
		req.SetBasicAuth("admin", "secret")
	}
	rec := httptest.NewRecorder()
	f.server.router.ServeHTTP(rec, req)
	return rec
}

func TestAdminRequiresAuth(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodGet, "/users/1/transactions", nil, false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/users/1/transactions", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	f.server.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminDepositAndTransactions(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodPost, "/users/1/deposit", map[string]any{"amount": 5000}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Balance int64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 5000, resp.Balance)

	rec = f.do(t, http.MethodGet, "/users/1/transactions", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var transactions []models.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transactions))
	require.Len(t, transactions, 1)
	require.EqualValues(t, 5000, transactions[0].Amount)
}

func TestAdminDepositValidation(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodPost, "/users/1/deposit", map[string]any{"amount": -10}, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/users/999/deposit", map[string]any{"amount": 100}, true)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminGrantSubscription(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodPost, "/users/1/subscription", map[string]any{"plan": "premium"}, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/users/1/subscriptions", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []models.Subscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &subs))
	require.Len(t, subs, 1)
	require.Equal(t, "premium", subs[0].Plan)

	rec = f.do(t, http.MethodPost, "/users/1/subscription", map[string]any{"plan": "platinum"}, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminDeleteUser(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodDelete, "/users/1/", nil, true)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/users/1/", nil, true)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRenameUser(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodPut, "/users/1/username", map[string]any{"username": "bob"}, true)
	require.Equal(t, http.StatusNoContent, rec.Code)

	user, err := f.store.Users.FindByID(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "bob", user.Username)
}
