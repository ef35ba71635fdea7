// Package openai wraps the OpenAI API behind the two operations the bot
// needs: chat completion and image generation.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gopenai "github.com/sashabaranov/go-openai"

	"dialogbot/internal/config"
	"dialogbot/internal/models"
)

// ErrEmptyCompletion is returned when the provider answers successfully but
// with no usable content. Callers must treat it as a failure, never as an
// empty assistant message.
var ErrEmptyCompletion = errors.New("provider returned empty completion")

// ChatMessage is one prompt turn. Role maps onto the provider's chat roles.
type ChatMessage struct {
	Role    string
	Content string
}

const (
	ChatRoleSystem    = gopenai.ChatMessageRoleSystem
	ChatRoleUser      = gopenai.ChatMessageRoleUser
	ChatRoleAssistant = gopenai.ChatMessageRoleAssistant
)

type Client struct {
	api        *gopenai.Client
	imageSize  string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	clientConfig := gopenai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:        gopenai.NewClientWithConfig(clientConfig),
		imageSize:  cfg.ImageSize,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// GenerateText sends the chat turns to the given model and returns the
// trimmed completion.
func (c *Client) GenerateText(ctx context.Context, model models.ModelType, messages []ChatMessage) (string, error) {
	req := gopenai.ChatCompletionRequest{
		Model:    string(model),
		Messages: make([]gopenai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, gopenai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

// GenerateImage asks the image endpoint for one image and returns its URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	req := gopenai.ImageRequest{
		Prompt:         prompt,
		N:              1,
		Size:           c.imageSize,
		ResponseFormat: gopenai.CreateImageResponseFormatURL,
	}

	resp, err := c.api.CreateImage(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Data[0].URL, nil
}

// DownloadImage fetches generated image bytes so they can be archived before
// the provider URL expires.
func (c *Client) DownloadImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("image download status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read image body: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx > 0 {
		contentType = contentType[:idx]
	}
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return body, contentType, nil
}
