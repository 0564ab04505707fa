package advisory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"rejectcli/internal/config"
)

var (
	// ErrNotConfigured is returned when no API key is available.
	ErrNotConfigured = errors.New("advisory service not configured")
	// ErrEmptyResponse is returned when the reply carries no text.
	ErrEmptyResponse = errors.New("advisory service returned no text")
)

// ServiceError is a non-2xx reply.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("advisory service returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Client calls the messages API through the vendor SDK.
type Client struct {
	messages  anthropic.MessageService
	model     string
	maxTokens int64
	logger    *slog.Logger
}

// NewClient creates a client from cfg. The request deadline comes from the
// caller's context, not from the HTTP client, and failed calls are not retried.
func NewClient(cfg config.AdvisoryConfig, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIVersion != "" {
		opts = append(opts, option.WithHeader("anthropic-version", cfg.APIVersion))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	client := anthropic.NewClient(opts...)
	return &Client{
		messages:  client.Messages,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		logger:    logger.With(slog.String("component", "advisory")),
	}, nil
}

// Advise sends prompt as a single user message and returns the reply text.
func (c *Client) Advise(ctx context.Context, prompt string) (string, error) {
	msg, err := c.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("advisory request: %w", ctxErr)
		}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			c.logger.Warn("advisory request rejected",
				slog.Int("status", apiErr.StatusCode),
				slog.String("model", c.model))
			body := apiErr.RawJSON()
			if body == "" {
				body = apiErr.Error()
			}
			return "", &ServiceError{StatusCode: apiErr.StatusCode, Body: truncate(body, 512)}
		}
		return "", fmt.Errorf("advisory request: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("advisory guidance received",
		slog.String("model", c.model),
		slog.Int("prompt_bytes", len(prompt)),
		slog.Int("guidance_bytes", text.Len()))

	return text.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
