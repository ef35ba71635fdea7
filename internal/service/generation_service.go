package service

import (
	"context"
	"fmt"
	"log/slog"

	"dialogbot/internal/models"
	"dialogbot/internal/openai"
	"dialogbot/internal/repository"
)

// Generator produces completions and images. *openai.Client is the
// production implementation.
type Generator interface {
	GenerateText(ctx context.Context, model models.ModelType, messages []openai.ChatMessage) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
	DownloadImage(ctx context.Context, url string) ([]byte, string, error)
}

// ImageArchiver stores generated image bytes durably and returns a public
// URL. Provider URLs expire, archived copies do not.
type ImageArchiver interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// GenerationService runs text and image generations for a dialog and charges
// for them. An active subscription with the needed feature and remaining
// quota covers a generation for free; otherwise the fixed cost is withdrawn
// from the user's balance.
type GenerationService struct {
	dialogs       repository.DialogStore
	messages      repository.MessageStore
	subscriptions *SubscriptionService
	balance       *BalanceService
	generator     Generator
	archiver      ImageArchiver
	textCost      int64
	imageCost     int64
	log           *slog.Logger
}

func NewGenerationService(
	dialogs repository.DialogStore,
	messages repository.MessageStore,
	subscriptions *SubscriptionService,
	balance *BalanceService,
	generator Generator,
	archiver ImageArchiver,
	textCost, imageCost int64,
	log *slog.Logger,
) *GenerationService {
	return &GenerationService{
		dialogs:       dialogs,
		messages:      messages,
		subscriptions: subscriptions,
		balance:       balance,
		generator:     generator,
		archiver:      archiver,
		textCost:      textCost,
		imageCost:     imageCost,
		log:           log,
	}
}

func requiredFeature(model models.ModelType) string {
	if model == models.ModelGPT4oMini {
		return FeatureBasicModel
	}
	return FeaturePremiumModel
}

// covered reports whether the user's subscription pays for one more
// generation with the given feature.
func (s *GenerationService) covered(ctx context.Context, userID int64, feature string) (bool, error) {
	sub, err := s.subscriptions.ActiveForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if sub == nil || !sub.HasFeature(feature) {
		return false, nil
	}
	if sub.MaxRequests == nil {
		return true, nil
	}
	used, err := s.messages.CountGenerationsSince(ctx, userID, sub.StartDate)
	if err != nil {
		return false, fmt.Errorf("count generations: %w", err)
	}
	return used < *sub.MaxRequests, nil
}

// charge withdraws the cost unless a subscription covers the generation. It
// reports whether money actually moved so a failed generation can be
// refunded.
func (s *GenerationService) charge(ctx context.Context, userID, cost int64, feature string) (bool, error) {
	free, err := s.covered(ctx, userID, feature)
	if err != nil {
		return false, err
	}
	if free {
		return false, nil
	}
	if _, err := s.balance.Withdraw(ctx, userID, cost); err != nil {
		return false, err
	}
	return true, nil
}

func (s *GenerationService) refund(ctx context.Context, userID, cost int64) {
	if _, err := s.balance.Deposit(ctx, userID, cost); err != nil {
		s.log.Error("failed to refund charge", "user_id", userID, "amount", cost, "error", err)
	}
}

// Text generates a reply in the dialog and appends both turns to its
// history. With ignoreHistory set the prompt is sent with only the role's
// system instruction, but both turns are still recorded.
func (s *GenerationService) Text(ctx context.Context, userID, dialogID int64, prompt string, ignoreHistory bool) (string, error) {
	dialog, err := s.dialogs.GetByID(ctx, dialogID)
	if err != nil {
		return "", fmt.Errorf("get dialog: %w", err)
	}
	if dialog == nil {
		return "", ErrDialogNotFound
	}

	turns := []openai.ChatMessage{{Role: openai.ChatRoleSystem, Content: dialog.RoleType.SystemPrompt()}}
	if !ignoreHistory {
		history, err := s.messages.ListForDialog(ctx, dialogID)
		if err != nil {
			return "", fmt.Errorf("list messages: %w", err)
		}
		if dialog.HistoryLimit != nil && len(history) > *dialog.HistoryLimit {
			history = history[len(history)-*dialog.HistoryLimit:]
		}
		for _, msg := range history {
			role := openai.ChatRoleUser
			if msg.Role == models.MessageRoleAssistant {
				role = openai.ChatRoleAssistant
			}
			turns = append(turns, openai.ChatMessage{Role: role, Content: msg.Body})
		}
	}
	turns = append(turns, openai.ChatMessage{Role: openai.ChatRoleUser, Content: prompt})

	charged, err := s.charge(ctx, userID, s.textCost, requiredFeature(dialog.ModelType))
	if err != nil {
		return "", err
	}

	reply, err := s.generator.GenerateText(ctx, dialog.ModelType, turns)
	if err != nil {
		if charged {
			s.refund(ctx, userID, s.textCost)
		}
		return "", fmt.Errorf("generate text: %w", err)
	}

	if _, err := s.messages.AppendText(ctx, &models.DialogMessage{
		DialogID: dialogID,
		UserID:   userID,
		Role:     models.MessageRoleUser,
		Body:     prompt,
	}); err != nil {
		return "", fmt.Errorf("append user message: %w", err)
	}
	if _, err := s.messages.AppendText(ctx, &models.DialogMessage{
		DialogID: dialogID,
		UserID:   userID,
		Role:     models.MessageRoleAssistant,
		Body:     reply,
	}); err != nil {
		return "", fmt.Errorf("append assistant message: %w", err)
	}
	return reply, nil
}

// Image generates an image for the prompt and records it in the dialog. The
// provider URL is archived to durable storage when an archiver is
// configured; archive failures fall back to the provider URL.
func (s *GenerationService) Image(ctx context.Context, userID, dialogID int64, prompt string) (string, error) {
	dialog, err := s.dialogs.GetByID(ctx, dialogID)
	if err != nil {
		return "", fmt.Errorf("get dialog: %w", err)
	}
	if dialog == nil {
		return "", ErrDialogNotFound
	}

	charged, err := s.charge(ctx, userID, s.imageCost, FeatureImageGeneration)
	if err != nil {
		return "", err
	}

	providerURL, err := s.generator.GenerateImage(ctx, prompt)
	if err != nil {
		if charged {
			s.refund(ctx, userID, s.imageCost)
		}
		return "", fmt.Errorf("generate image: %w", err)
	}

	imageURL := providerURL
	if s.archiver != nil {
		archived, err := s.archive(ctx, providerURL)
		if err != nil {
			s.log.Warn("failed to archive image, keeping provider url", "error", err)
		} else {
			imageURL = archived
		}
	}

	if _, err := s.messages.CreateImage(ctx, &models.ImageMessage{
		DialogID: dialogID,
		UserID:   userID,
		Prompt:   prompt,
		ImageURL: imageURL,
	}); err != nil {
		return "", fmt.Errorf("record image message: %w", err)
	}
	return imageURL, nil
}

func (s *GenerationService) archive(ctx context.Context, providerURL string) (string, error) {
	data, contentType, err := s.generator.DownloadImage(ctx, providerURL)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	url, err := s.archiver.Upload(ctx, data, contentType)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return url, nil
}
