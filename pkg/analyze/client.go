package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/Frallans76Organisation/innovation-hub/pkg/config"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1"
	defaultModel       = "qwen/qwen3-32b"
	defaultTemperature = 0.2
	defaultMaxTokens   = 1000
	defaultTimeout     = 60 * time.Second
	defaultReferer     = "https://innovation-hub.local"
	defaultTitle       = "Innovation Hub AI Analysis"
)

// ChatClient is the completion surface the analyzer drives. One call
// is one classifier answer.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client talks to an OpenRouter-compatible chat completion endpoint.
type Client struct {
	api         openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewClient builds a chat client from config. It fails only when no
// API key is configured; callers treat that as keyword-only operation,
// not a fatal error.
func NewClient(cfg config.AnalyzeConfig) (*Client, error) {
	if cfg.APIKey.Value() == "" {
		return nil, errors.New("analyze: OPENROUTER_API_KEY is not set")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	referer := cfg.Referer
	if referer == "" {
		referer = defaultReferer
	}
	title := cfg.Title
	if title == "" {
		title = defaultTitle
	}

	api := openai.NewClient(
		option.WithAPIKey(cfg.APIKey.Value()),
		option.WithBaseURL(baseURL),
		option.WithRequestTimeout(timeout),
		option.WithHeader("HTTP-Referer", referer),
		option.WithHeader("X-Title", title),
	)
	return &Client{
		api:         api,
		model:       model,
		temperature: temperature,
		maxTokens:   int64(maxTokens),
	}, nil
}

// Complete sends one system+user exchange and returns the trimmed
// answer text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices in response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("chat completion: empty answer")
	}
	return content, nil
}
