package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/docfinder/internal/domain"
	"github.com/kailas-cloud/docfinder/internal/domain/history"
	"github.com/kailas-cloud/docfinder/internal/metrics"
)

// Client is a chat completion client for an OpenAI-compatible API.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// Config holds the chat provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	// RatePerSec and Burst bound outgoing requests; zero disables limiting.
	RatePerSec float64
	Burst      int
	Logger     *zap.Logger
}

// NewClient creates an OpenAI-compatible chat client.
func NewClient(cfg *Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		limiter:     limiter,
		logger:      logger,
	}
}

// Chat sends the system prompt, prior turns and the user message and returns the reply text.
// purpose labels the call in metrics. Every failure wraps domain.ErrOracleUnavailable.
func (c *Client) Chat(ctx context.Context, purpose, system string, turns []history.Turn, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.OracleErrorsTotal.WithLabelValues(c.model, "rate_limited").Inc()
		return "", fmt.Errorf("wait for rate limiter: %w: %w", err, domain.ErrOracleUnavailable)
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		if t.Role == history.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.OracleRequestsTotal.WithLabelValues(c.model, purpose, "error").Inc()
		metrics.OracleErrorsTotal.WithLabelValues(c.model, errorType(ctx, err)).Inc()
		return "", parseAPIError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.OracleRequestsTotal.WithLabelValues(c.model, purpose, "error").Inc()
		metrics.OracleErrorsTotal.WithLabelValues(c.model, "empty_response").Inc()
		return "", fmt.Errorf("empty chat response: %w", domain.ErrOracleUnavailable)
	}

	metrics.OracleRequestsTotal.WithLabelValues(c.model, purpose, "success").Inc()
	metrics.OracleRequestDuration.WithLabelValues(c.model, purpose).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.OracleTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.OracleTokensTotal.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	c.logger.Debug("Chat completion",
		zap.String("purpose", purpose),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func errorType(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "api_error"
	}
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrOracleUnavailable so callers take the fallback path.
func parseAPIError(err error) error {
	wrap := domain.ErrOracleUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("chat API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("chat API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chat API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("chat request failed: %w: %w", err, wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
