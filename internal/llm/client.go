package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion indicates the provider returned no usable choice.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Completer produces a raw text completion for a prompt. The analysis
// orchestration owns retries around it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config describes the chat-completion provider. Groq exposes the OpenAI
// wire format, so the same client covers both by switching BaseURL.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Client calls a chat-completion API.
type Client struct {
	api    *openai.Client
	cfg    Config
	logger *slog.Logger
}

// NewClient constructs a completion client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm: api key required")
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.1-8b-instant"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		apiCfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: openai.NewClientWithConfig(apiCfg), cfg: cfg, logger: logger}, nil
}

// Complete sends the prompt as a single user message and returns the raw
// completion text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	c.logger.Debug("completion received", "model", c.cfg.Model, "length", len(text))
	return text, nil
}
