package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/ternarybob/arbor"
)

// OpenAIBackend completes chats with an OpenAI-compatible API. A custom
// base URL points it at compatible endpoints such as DeepSeek.
type OpenAIBackend struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      arbor.ILogger
}

// NewOpenAIBackend creates an OpenAI-compatible client.
func NewOpenAIBackend(apiKey, baseURL, model string, temperature float32, logger arbor.ILogger) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key", ErrLLMAuth)
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIBackend{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}, nil
}

// Name returns "openai".
func (o *OpenAIBackend) Name() string { return "openai" }

// Complete sends a system and a user message.
func (o *OpenAIBackend) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	var messages []openai.ChatCompletionMessage
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		Messages:    messages,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classified(classifyOpenAIError(err), o.Name(), err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", classified(errTransient, o.Name(), errEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) error {
	apiErr := &openai.APIError{}
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if code, ok := apiErr.Code.(string); ok {
			message = code + " " + message
		}
		return classifyStatus(apiErr.HTTPStatusCode, message)
	}

	reqErr := &openai.RequestError{}
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, reqErr.Error())
	}

	return errTransient
}
