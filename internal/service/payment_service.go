package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"dialogbot/internal/config"
	"dialogbot/internal/models"
	"dialogbot/internal/repository"
)

// PaymentService accepts top-up payments via Telegram invoices or YooKassa
// and deposits the paid amount onto the user's balance.
type PaymentService struct {
	cfg      config.Config
	payments repository.PaymentStore
	balance  *BalanceService
	client   *http.Client
}

func NewPaymentService(cfg config.Config, payments repository.PaymentStore, balance *BalanceService) *PaymentService {
	return &PaymentService{
		cfg:      cfg,
		payments: payments,
		balance:  balance,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SendInvoice sends a payment link/invoice depending on configured provider.
func (s *PaymentService) SendInvoice(ctx context.Context, bot *tgbotapi.BotAPI, user *models.User, chatID int64) error {
	switch strings.ToLower(s.cfg.PaymentProvider) {
	case "telegram", "":
		return s.sendTelegramInvoice(bot, chatID)
	case "yookassa":
		return s.sendYooKassaPayment(ctx, bot, user, chatID)
	default:
		return fmt.Errorf("unsupported payment provider: %s", s.cfg.PaymentProvider)
	}
}

func (s *PaymentService) sendTelegramInvoice(bot *tgbotapi.BotAPI, chatID int64) error {
	prices := []tgbotapi.LabeledPrice{
		{
			Label:  "Пополнение баланса",
			Amount: int(s.cfg.TopUpAmountMinorUnits),
		},
	}

	payload, _ := json.Marshal(map[string]any{
		"amount": s.cfg.TopUpAmountMinorUnits,
	})

	invoice := tgbotapi.NewInvoice(chatID,
		"Пополнение баланса",
		"Кредиты для генерации текста и изображений",
		string(payload),
		s.cfg.TelegramPaymentProviderToken,
		"topup",
		s.cfg.PaymentCurrency,
		prices,
	)

	if _, err := bot.Send(invoice); err != nil {
		return fmt.Errorf("send invoice: %w", err)
	}
	return nil
}

func (s *PaymentService) sendYooKassaPayment(ctx context.Context, bot *tgbotapi.BotAPI, user *models.User, chatID int64) error {
	payment, err := s.createYooKassaPayment(ctx)
	if err != nil {
		return err
	}

	record := &models.Payment{
		UserID:         user.ID,
		Provider:       "yookassa",
		ProviderCharge: payment.ID,
		Currency:       s.cfg.PaymentCurrency,
		Amount:         s.cfg.TopUpAmountMinorUnits,
		Status:         payment.Status,
		RawPayload:     string(jsonMustMarshal(payment)),
	}
	if err := s.payments.Create(ctx, record); err != nil {
		return fmt.Errorf("record payment: %w", err)
	}

	text := fmt.Sprintf("Оплата через ЮKassa:\nСумма: %.2f %s\nСсылка на оплату: %s\nПосле оплаты баланс будет пополнен автоматически.",
		float64(s.cfg.TopUpAmountMinorUnits)/100, s.cfg.PaymentCurrency, payment.Confirmation.URL)

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("send payment link: %w", err)
	}
	return nil
}

func (s *PaymentService) HandlePreCheckout(bot *tgbotapi.BotAPI, query *tgbotapi.PreCheckoutQuery) error {
	response := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: query.ID,
		OK:                 true,
	}
	if _, err := bot.Request(response); err != nil {
		return fmt.Errorf("answer pre-checkout: %w", err)
	}
	return nil
}

func (s *PaymentService) HandleSuccessfulPayment(ctx context.Context, user *models.User, payment *tgbotapi.SuccessfulPayment) error {
	if _, err := s.balance.Deposit(ctx, user.ID, int64(payment.TotalAmount)); err != nil {
		return fmt.Errorf("deposit payment: %w", err)
	}

	record := &models.Payment{
		UserID:         user.ID,
		Provider:       "telegram",
		ProviderCharge: payment.ProviderPaymentChargeID,
		Currency:       payment.Currency,
		Amount:         int64(payment.TotalAmount),
		Status:         "paid",
		RawPayload:     string(jsonMustMarshal(payment)),
	}
	if err := s.payments.Create(ctx, record); err != nil {
		return fmt.Errorf("record payment: %w", err)
	}

	return nil
}

type yooPaymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		Type string `json:"type"`
		URL  string `json:"confirmation_url"`
	} `json:"confirmation"`
	Amount struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"amount"`
}

func (s *PaymentService) createYooKassaPayment(ctx context.Context) (*yooPaymentResponse, error) {
	if s.cfg.YooKassaShopID == "" || s.cfg.YooKassaSecretKey == "" {
		return nil, fmt.Errorf("yookassa credentials are not configured")
	}

	value := fmt.Sprintf("%.2f", float64(s.cfg.TopUpAmountMinorUnits)/100)
	returnURL := s.cfg.YooKassaReturnURL
	if returnURL == "" {
		returnURL = "https://t.me"
	}

	payload := map[string]any{
		"amount": map[string]string{
			"value":    value,
			"currency": s.cfg.PaymentCurrency,
		},
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": returnURL,
		},
		"description": "Пополнение баланса",
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.yookassa.ru/v3/payments", strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("build yookassa request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())
	req.SetBasicAuth(s.cfg.YooKassaShopID, s.cfg.YooKassaSecretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yookassa request: %w", err)
	}
	defer resp.Body.Close()

	var parsed yooPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode yookassa response: %w", err)
	}
	if parsed.ID == "" || parsed.Confirmation.URL == "" {
		return nil, fmt.Errorf("invalid yookassa response (missing id or confirmation url)")
	}
	if parsed.Status == "" {
		parsed.Status = "pending"
	}
	return &parsed, nil
}

// HandleYooKassaWebhook processes payment status updates and tops up the
// user's balance. A webhook replayed for an already paid payment is a no-op.
func (s *PaymentService) HandleYooKassaWebhook(ctx context.Context, payload []byte) error {
	var evt struct {
		Event  string `json:"event"`
		Object struct {
			ID          string `json:"id"`
			Status      string `json:"status"`
			Description string `json:"description"`
			Amount      struct {
				Value    string `json:"value"`
				Currency string `json:"currency"`
			} `json:"amount"`
		} `json:"object"`
	}
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("parse webhook: %w", err)
	}
	if evt.Object.ID == "" {
		return fmt.Errorf("webhook missing payment id")
	}

	pmt, err := s.payments.FindByProviderCharge(ctx, "yookassa", evt.Object.ID)
	if err != nil {
		return fmt.Errorf("find payment: %w", err)
	}
	if pmt == nil {
		return fmt.Errorf("payment not found for id=%s", evt.Object.ID)
	}
	if pmt.Status == "paid" {
		return nil // already processed
	}

	if evt.Object.Status == "succeeded" {
		if _, err := s.balance.Deposit(ctx, pmt.UserID, pmt.Amount); err != nil {
			return fmt.Errorf("deposit payment: %w", err)
		}
		if err := s.payments.UpdateStatus(ctx, pmt.ID, "paid", string(payload)); err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		return nil
	}

	// For failed/canceled just update status
	if err := s.payments.UpdateStatus(ctx, pmt.ID, evt.Object.Status, string(payload)); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

func jsonMustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
