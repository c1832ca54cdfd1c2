package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"
)

// GeminiBackend completes chats with the Google Gemini API.
type GeminiBackend struct {
	client      *genai.Client
	model       string
	temperature float32
	logger      arbor.ILogger
}

// NewGeminiBackend creates a Gemini client. baseURL overrides the API
// endpoint when set.
func NewGeminiBackend(ctx context.Context, apiKey, model string, temperature float32, baseURL string, logger arbor.ILogger) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key", ErrLLMAuth)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiBackend{
		client:      client,
		model:       model,
		temperature: temperature,
		logger:      logger,
	}, nil
}

// Name returns "gemini".
func (g *GeminiBackend) Name() string { return "gemini" }

// Complete sends one user message under the system instruction.
func (g *GeminiBackend) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	contents := []*genai.Content{genai.NewContentFromText(userMessage, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classified(classifyMessage(err), g.Name(), err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", classified(errTransient, g.Name(), errEmptyResponse)
	}

	text := resp.Text()
	if text == "" {
		return "", classified(errTransient, g.Name(), errEmptyResponse)
	}
	return text, nil
}
