package llm

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/jingkaihe/skillkit/pkg/logger"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gpt-4o-mini"

const (
	retryAttempts     = 3
	retryInitialDelay = 500 * time.Millisecond
	retryMaxDelay     = 5 * time.Second
)

// OpenAIClient implements Client against the OpenAI chat completion API
type OpenAIClient struct {
	client  *openai.Client
	model   string
	baseURL string
}

// OpenAIOption configures an OpenAIClient
type OpenAIOption func(*OpenAIClient)

// WithModel overrides the default model
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint
func WithBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.baseURL = baseURL
	}
}

// NewOpenAI creates an OpenAI-backed client. An empty API key yields nil,
// which consumers treat as "no model configured".
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	if apiKey == "" {
		return nil
	}
	c := &OpenAIClient{model: DefaultModel}
	for _, opt := range opts {
		opt(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	c.client = openai.NewClientWithConfig(cfg)
	return c
}

// Generate returns the completion text for a prompt
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, nil)
}

// GenerateJSON asks for a JSON object response and decodes it
func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt string) (map[string]interface{}, error) {
	text, err := c.complete(ctx, prompt, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
	if err != nil {
		return nil, err
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, errors.Wrap(err, "model returned malformed JSON")
	}
	return out, nil
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string, format *openai.ChatCompletionResponseFormat) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: format,
	}

	var resp openai.ChatCompletionResponse
	err := retry.Do(
		func() error {
			var apiErr error
			resp, apiErr = c.client.CreateChatCompletion(ctx, req)
			return apiErr
		},
		retry.RetryIf(isRetryableError),
		retry.Attempts(retryAttempts),
		retry.Delay(retryInitialDelay),
		retry.MaxDelay(retryMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).Warn("retrying model API call")
		}),
	)
	if err != nil {
		return "", errors.Wrap(err, "model request failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// isRetryableError matches transient failures: rate limits, server errors
// and network hiccups. Cancellation and bad requests are not retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "connection reset")
}
