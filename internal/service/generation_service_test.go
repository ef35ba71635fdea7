package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dialogbot/internal/models"
	"dialogbot/internal/openai"
	"dialogbot/internal/repository/stubs"
)

type fakeGenerator struct {
	reply     string
	imageURL  string
	textErr   error
	imageErr  error
	textCalls int
	lastTurns []openai.ChatMessage
}

func (g *fakeGenerator) GenerateText(ctx context.Context, model models.ModelType, messages []openai.ChatMessage) (string, error) {
	g.textCalls++
	g.lastTurns = messages
	if g.textErr != nil {
		return "", g.textErr
	}
	return g.reply, nil
}

func (g *fakeGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if g.imageErr != nil {
		return "", g.imageErr
	}
	return g.imageURL, nil
}

func (g *fakeGenerator) DownloadImage(ctx context.Context, url string) ([]byte, string, error) {
	return []byte("image-bytes"), "image/png", nil
}

type fakeArchiver struct {
	url     string
	err     error
	uploads int
}

func (a *fakeArchiver) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	a.uploads++
	if a.err != nil {
		return "", a.err
	}
	return a.url, nil
}

type generationFixture struct {
	store         *stubs.MemoryStore
	svc           *GenerationService
	balance       *BalanceService
	subscriptions *SubscriptionService
	generator     *fakeGenerator
	archiver      *fakeArchiver
	user          *models.User
	dialogID      int64
}

func newGenerationFixture(t *testing.T) *generationFixture {
	t.Helper()
	ctx := context.Background()
	store := stubs.NewMemoryStore()
	user, err := store.Users.Create(ctx, &models.User{TelegramID: 100, Username: "alice"})
	require.NoError(t, err)
	dialog, err := store.Dialogs.Create(ctx, &models.Dialog{
		UserID:    user.ID,
		ModelType: models.ModelGPT4oMini,
		RoleType:  models.RoleGeneral,
	})
	require.NoError(t, err)

	generator := &fakeGenerator{reply: "готово", imageURL: "https://provider.example/img.png"}
	archiver := &fakeArchiver{url: "https://cdn.example/img.png"}
	balance := NewBalanceService(store.Balances)
	subscriptions := NewSubscriptionService(store.Subscriptions)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewGenerationService(store.Dialogs, store.Messages, subscriptions, balance, generator, archiver, 500, 2500, log)
	return &generationFixture{
		store:         store,
		svc:           svc,
		balance:       balance,
		subscriptions: subscriptions,
		generator:     generator,
		archiver:      archiver,
		user:          user,
		dialogID:      dialog.ID,
	}
}

func TestTextGenerationChargesBalance(t *testing.T) {
	ctx := context.Background()
	f := newGenerationFixture(t)
	_, err := f.balance.Deposit(ctx, f.user.ID, 1000)
	require.NoError(t, err)

	reply, err := f.svc.Text(ctx, f.user.ID, f.dialogID, "привет", false)
	require.NoError(t, err)
	require.Equal(t, "готово", reply)

	balance, err := f.balance.Balance(ctx, f.user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 500, balance)

	history, err := f.store.Messages.ListForDialog(ctx, f.dialogID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, models.MessageRoleUser, history[0].Role)
	require.Equal(t, "привет", history[0].Body)
	require.Equal(t, models.MessageRoleAssistant, history[1].Role)
	require.Equal(t, "готово", history[1].Body)
}

func TestTextGenerationInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newGenerationFixture(t)
	_, err := f.balance.Deposit(ctx, f.user.ID, 100)
	require.NoError(t, err)

	_, err = f.svc.Text(ctx, f.user.ID, f.dialogID, "привет", false)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// the provider is never called and nothing is written
	require.Zero(t, f.generator.textCalls)
	history, err := f.store.Messages.ListForDialog(ctx, f.dialogID)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestTextGenerationProviderFailureRefunds(t *testing.T) {
	ctx := context.Background()
	f := newGenerationFixture(t)
	_, err := f.balance.Deposit(ctx, f.user.ID, 1000)
	require.NoError(t, err)
	f.generator.textErr = errors.New("provider down")

	_, err = f.svc.Text(ctx, f.user.ID, f.dialogID, "привет", false)
	require.Error(t, err)

	// the withdrawal is compensated and no turns are recorded
	balance, err := f.balance.Balance(ctx, f.user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1000, balance)

	transactions, err := f.balance.History(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, transactions, 3)

	history, err := f.store.Messages.ListForDialog(ctx, f.dialogID)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestImageGenerationProviderFailureRefunds(t *testing.T) {
	ctx := context.Background()
	f := newGenerationFixture(t)
	_, err := f.balance.Deposit(ctx, f.user.ID, 3000)
	require.NoError(t, err)
	f.generator.imageErr = errors.New("provider down")

	_, err = f.svc.Image(ctx, f.user.ID, f.dialogID, "кот")
	require.Error(t, err)

	balance, err := f.balance.Balance(ctx, f.user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3000, balance)
	require.Zero(t, f.archiver.uploads)
}

func TestTextGenerationCoveredFailureLeavesBalance(t *testing.T) {
	ctx := context.Background()
	f := newGenerationFixture(t)
	_, err := f.subscriptions.Subscribe(ctx, f.user.ID, "unlimited")
	require.NoError(t, err)
	f.generator.textErr = errors.New("provider down")

	_, err = f.svc.Text(ctx, f.user.ID, f.dialogID, "привет", false)
	require.Error(t, err)

	// nothing was charged, so nothing is deposited back
	transactions, err := f.balance.History(ctx, f.user.ID)
	require.NoError(t, err)
	require.Empty(t, transactions)
}

func TestTextGenerationCoveredBySubscription(t *testing.T) {
	ctx := context.Background()
	f := newGenerationFixture(t)
	_, err := f.subscriptions.Subscribe(ctx, f.user.ID, "unlimited")
	require.NoError(t, err)

	// zero balance, the subscription covers it
	_, err = f.svc.Text(ctx, f.user.ID, f.dialogID, "привет", false)
	require.NoError(t, err)

	balance, err := f.balance.Balance(ctx, f.user.ID)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestTextGenerationQuotaExhausted(t *testing.T) {
	ctx := context.Background()
	f := newGenerationFixture(t)
	_, err := f.balance.Deposit(ctx, f.user.ID, 1000)
	require.NoError(t, err)

	one := 1
	now := time.Now()
	_, err = f.store.Subscriptions.Replace(ctx, &models.Subscription{
		UserID:      f.user.ID,
		Plan:        "basic",
		StartDate:   now.Add(-time.Hour),
		EndDate:     now.Add(time.Hour),
		MaxRequests: &one,
		Features:    []string{FeatureBasicModel},
	})
	require.NoError(t, err)

	// first request spends the quota
	_, err = f.svc.Text(ctx, f.user.ID, f.dialogID, "раз", false)
	require.NoError(t, err)
	balance, err := f.balance.Balance(ctx, f.user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1000, balance)

	// second one falls back to the balance
	_, err = f.svc.Text(ctx, f.user.ID, f.dialogID, "два", false)
	require.NoError(t, err)
	balance, err = f.balance.Balance(ctx, f.user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 500, balance)
}

func TestTextGenerationSubscriptionWithoutFeature(t *testing.T) {
	ctx := context.Background()
	f := newGenerationFixture(t)
	_, err := f.balance.Deposit(ctx, f.user.ID, 1000)
	require.NoError(t, err)
	_, err = f.subscriptions.Subscribe(ctx, f.user.ID, "basic")
	require.NoError(t, err)

	// gpt-4o is a premium model, the basic plan does not cover it
	require.NoError(t, f.store.Dialogs.Update(ctx, f.dialogID, DialogModelPatch(models.ModelGPT4o)))

	_, err = f.svc.Text(ctx, f.user.ID, f.dialogID, "привет", false)
	require.NoError(t, err)
	balance, err := f.balance.Balance(ctx, f.user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 500, balance)
}

func TestTextGenerationPromptAssembly(t *testing.T) {
	ctx := context.Background()
	f := newGenerationFixture(t)
	_, err := f.balance.Deposit(ctx, f.user.ID, 10000)
	require.NoError(t, err)

	for _, body := range []string{"один", "два", "три", "четыре"} {
		_, err = f.store.Messages.AppendText(ctx, &models.DialogMessage{
			DialogID: f.dialogID,
			UserID:   f.user.ID,
			Role:     models.MessageRoleUser,
			Body:     body,
		})
		require.NoError(t, err)
	}
	require.NoError(t, f.store.Dialogs.Update(ctx, f.dialogID, DialogLimitPatch(2)))

	_, err = f.svc.Text(ctx, f.user.ID, f.dialogID, "пять", false)
	require.NoError(t, err)

	// system prompt + last two history turns + the new prompt
	require.Len(t, f.generator.lastTurns, 4)
	require.Equal(t, openai.ChatRoleSystem, f.generator.lastTurns[0].Role)
	require.Equal(t, "три", f.generator.lastTurns[1].Content)
	require.Equal(t, "четыре", f.generator.lastTurns[2].Content)
	require.Equal(t, "пять", f.generator.lastTurns[3].Content)
}

func TestTextGenerationIgnoresHistory(t *testing.T) {
	ctx := context.Background()
	f := newGenerationFixture(t)
	_, err := f.balance.Deposit(ctx, f.user.ID, 10000)
	require.NoError(t, err)

	_, err = f.store.Messages.AppendText(ctx, &models.DialogMessage{
		DialogID: f.dialogID,
		UserID:   f.user.ID,
		Role:     models.MessageRoleUser,
		Body:     "старое сообщение",
	})
	require.NoError(t, err)

	_, err = f.svc.Text(ctx, f.user.ID, f.dialogID, "новое", true)
	require.NoError(t, err)

	require.Len(t, f.generator.lastTurns, 2)
	require.Equal(t, openai.ChatRoleSystem, f.generator.lastTurns[0].Role)
	require.Equal(t, "новое", f.generator.lastTurns[1].Content)
}

func TestImageGenerationArchives(t *testing.T) {
	ctx := context.Background()
	f := newGenerationFixture(t)
	_, err := f.balance.Deposit(ctx, f.user.ID, 5000)
	require.NoError(t, err)

	url, err := f.svc.Image(ctx, f.user.ID, f.dialogID, "кот в сапогах")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/img.png", url)
	require.Equal(t, 1, f.archiver.uploads)

	balance, err := f.balance.Balance(ctx, f.user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2500, balance)

	images, err := f.store.Messages.ListImagesForDialog(ctx, f.dialogID)
	require.NoError(t, err)
	require.Len(t, images, 1)
	require.Equal(t, "кот в сапогах", images[0].Prompt)
	require.Equal(t, "https://cdn.example/img.png", images[0].ImageURL)
}

func TestImageGenerationArchiveFallback(t *testing.T) {
	ctx := context.Background()
	f := newGenerationFixture(t)
	f.archiver.err = errors.New("bucket unavailable")
	_, err := f.balance.Deposit(ctx, f.user.ID, 5000)
	require.NoError(t, err)

	url, err := f.svc.Image(ctx, f.user.ID, f.dialogID, "кот")
	require.NoError(t, err)
	require.Equal(t, "https://provider.example/img.png", url)

	images, err := f.store.Messages.ListImagesForDialog(ctx, f.dialogID)
	require.NoError(t, err)
	require.Len(t, images, 1)
	require.Equal(t, "https://provider.example/img.png", images[0].ImageURL)
}

func TestImageGenerationUnknownDialog(t *testing.T) {
	ctx := context.Background()
	f := newGenerationFixture(t)
	_, err := f.svc.Image(ctx, f.user.ID, 999, "кот")
	require.ErrorIs(t, err, ErrDialogNotFound)
}
