package interfaces

import (
	"context"

	"github.com/ternarybob/fundlens/internal/models"
)

// LLMBackend is a single chat-completion provider.
type LLMBackend interface {
	Name() string
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// LLMService generates report text from an assembled context.
type LLMService interface {
	Generate(ctx context.Context, systemPrompt string, rc *models.ReportContext) (string, error)
}
