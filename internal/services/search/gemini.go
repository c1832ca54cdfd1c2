package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/fundlens/internal/models"
)

// GeminiProvider searches through Gemini's Google Search grounding tool.
// Each grounding chunk becomes one item; snippets come from the response
// segments that cite the chunk.
type GeminiProvider struct {
	client *genai.Client
	model  string
	now    func() time.Time
	logger arbor.ILogger
}

// NewGeminiProvider creates a grounded search provider. baseURL overrides
// the API endpoint when set.
func NewGeminiProvider(ctx context.Context, apiKey, baseURL, model string, logger arbor.ILogger) (*GeminiProvider, error) {
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
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiProvider{client: client, model: model, now: time.Now, logger: logger}, nil
}

// Name implements interfaces.SearchProvider.
func (p *GeminiProvider) Name() string { return "gemini" }

// Search implements interfaces.SearchProvider.
func (p *GeminiProvider) Search(ctx context.Context, query string, recency time.Duration, maxResults int) ([]models.NewsItem, error) {
	prompt := fmt.Sprintf(`Today is %s. Search for news published within the last %d hours about: %s
List up to %d distinct news items. For each give one sentence summarising it.`,
		p.now().Format("2006-01-02"), int(recency.Hours()), query, maxResults)

	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, config)
	if err != nil {
		if isGeminiQuotaError(err) {
			return nil, fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
		}
		return nil, fmt.Errorf("grounded search failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil, nil
	}
	meta := resp.Candidates[0].GroundingMetadata

	snippets := make(map[int][]string)
	for _, support := range meta.GroundingSupports {
		if support == nil || support.Segment == nil {
			continue
		}
		for _, idx := range support.GroundingChunkIndices {
			snippets[int(idx)] = append(snippets[int(idx)], support.Segment.Text)
		}
	}

	var items []models.NewsItem
	for i, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		items = append(items, models.NewsItem{
			Title:   chunk.Web.Title,
			URL:     chunk.Web.URI,
			Source:  "google search",
			Snippet: strings.Join(snippets[i], " "),
		})
	}
	return items, nil
}

// isGeminiQuotaError distinguishes exhausted daily or zero-limit quotas
// from per-minute rate limits, which are retried.
func isGeminiQuotaError(err error) bool {
	msg := err.Error()
	if !strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return false
	}
	return strings.Contains(msg, "limit: 0") || strings.Contains(msg, "PerDay")
}
