// Package llm wraps the chat-completions endpoint as a pure function:
// prompt in, JSON out. Parsing is lenient and fail-soft; callers must
// tolerate a nil document and fall back to heuristics.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrUnconfigured is returned when no API key is present.
var ErrUnconfigured = errors.New("llm: not configured")

// Result carries a completion plus its token accounting.
type Result struct {
	Content    string
	TokensUsed int
}

// Client is the single-shot completion interface agent nodes depend on.
type Client interface {
	// Complete sends one system+user exchange. When jsonMode is set the
	// request asks for a JSON object response.
	Complete(ctx context.Context, system, user string, jsonMode bool) (*Result, error)
	// Configured reports whether calls can succeed at all.
	Configured() bool
}

// OpenAIClient implements Client over the OpenAI-compatible API.
type OpenAIClient struct {
	api         *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// Config holds client construction parameters.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// NewOpenAIClient builds the client. A missing key yields a client whose
// calls return ErrUnconfigured.
func NewOpenAIClient(cfg Config, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &OpenAIClient{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      logger.Named("llm"),
	}
	if cfg.APIKey == "" {
		return c
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	c.api = openai.NewClientWithConfig(apiCfg)
	return c
}

// Configured implements Client.
func (c *OpenAIClient) Configured() bool { return c.api != nil }

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string, jsonMode bool) (*Result, error) {
	if c.api == nil {
		return nil, ErrUnconfigured
	}
	start := time.Now()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	c.logger.Debug("completion",
		zap.String("model", c.model),
		zap.Int("tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)))

	return &Result{
		Content:    resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}
