package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
)

// ClaudeBackend completes chats with the Anthropic Messages API.
type ClaudeBackend struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float32
	logger      arbor.ILogger
}

// NewClaudeBackend creates an Anthropic client. SDK-level retries are
// disabled; the gateway owns the retry policy.
func NewClaudeBackend(apiKey, model string, maxTokens int, temperature float32, baseURL string, logger arbor.ILogger) (*ClaudeBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: claude api key", ErrLLMAuth)
	}
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &ClaudeBackend{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}, nil
}

// Name returns "claude".
func (c *ClaudeBackend) Name() string { return "claude" }

// Complete sends one user message with the system prompt.
func (c *ClaudeBackend) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	}
	if c.temperature > 0 {
		params.Temperature = anthropic.Float(float64(c.temperature))
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classified(classifyClaudeError(err), c.Name(), err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", classified(errTransient, c.Name(), errEmptyResponse)
	}
	return text.String(), nil
}

func classifyClaudeError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		// 529 is Anthropic's overloaded status.
		return classifyStatus(apiErr.StatusCode, apiErr.Error())
	}
	return classifyMessage(err)
}
