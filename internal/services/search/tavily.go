package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/fundlens/internal/models"
)

// DefaultTavilyBaseURL is the Tavily REST endpoint.
const DefaultTavilyBaseURL = "https://api.tavily.com"

// TavilyProvider queries Tavily's news search.
type TavilyProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

type tavilyRequest struct {
	Query       string `json:"query"`
	Topic       string `json:"topic"`
	Days        int    `json:"days,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

// NewTavilyProvider creates a Tavily provider. An empty baseURL uses the default.
func NewTavilyProvider(apiKey, baseURL string, logger arbor.ILogger) *TavilyProvider {
	if baseURL == "" {
		baseURL = DefaultTavilyBaseURL
	}
	return &TavilyProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		logger:     logger,
	}
}

// Name implements interfaces.SearchProvider.
func (p *TavilyProvider) Name() string { return "tavily" }

// Search implements interfaces.SearchProvider.
func (p *TavilyProvider) Search(ctx context.Context, query string, recency time.Duration, maxResults int) ([]models.NewsItem, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	days := int(recency.Hours() / 24)
	if days < 1 {
		days = 1
	}
	body, err := json.Marshal(tavilyRequest{
		Query:       query,
		Topic:       "news",
		Days:        days,
		MaxResults:  maxResults,
		SearchDepth: "basic",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		switch resp.StatusCode {
		// 432 and 433 are plan and pay-as-you-go limits.
		case 432, 433:
			return nil, fmt.Errorf("%w: tavily status %d: %s", ErrQuotaExhausted, resp.StatusCode, msg)
		default:
			return nil, fmt.Errorf("tavily status %d: %s", resp.StatusCode, msg)
		}
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode tavily response: %w", err)
	}

	items := make([]models.NewsItem, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		item := models.NewsItem{
			Title:   r.Title,
			Snippet: r.Content,
			URL:     r.URL,
			Source:  hostOf(r.URL),
		}
		if t, ok := parsePublished(r.PublishedDate); ok {
			item.PublishedAt = &t
		}
		items = append(items, item)
	}
	return items, nil
}

var publishedLayouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parsePublished(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func hostOf(rawURL string) string {
	s := rawURL
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimPrefix(s, "www.")
}
