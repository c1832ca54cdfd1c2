package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fundlens/internal/models"
	"github.com/ternarybob/fundlens/internal/services/transform"
)

// queryNoise are words the context builder appends to queries that carry
// no matching value in feed text.
var queryNoise = map[string]bool{
	"新闻":     true,
	"news":   true,
	"最新":     true,
	"latest": true,
}

// RSSProvider answers queries from configured feeds. An item matches when
// its title or description contains any query term.
type RSSProvider struct {
	feeds      []string
	httpClient *http.Client
	text       *transform.Service
	now        func() time.Time
	logger     arbor.ILogger
}

// NewRSSProvider creates a feed-backed provider.
func NewRSSProvider(feeds []string, logger arbor.ILogger) *RSSProvider {
	valid := make([]string, 0, len(feeds))
	for _, feed := range feeds {
		if strings.HasPrefix(feed, "http://") || strings.HasPrefix(feed, "https://") {
			valid = append(valid, feed)
		}
	}
	return &RSSProvider{
		feeds:      valid,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		text:       transform.NewService(logger),
		now:        time.Now,
		logger:     logger,
	}
}

// Name implements interfaces.SearchProvider.
func (p *RSSProvider) Name() string { return "rss" }

// Search implements interfaces.SearchProvider. Feeds are fetched on every
// call. It fails only when every feed fails.
func (p *RSSProvider) Search(ctx context.Context, query string, recency time.Duration, maxResults int) ([]models.NewsItem, error) {
	terms := queryTerms(query)
	cutoff := p.now().Add(-recency)

	var items []models.NewsItem
	var errs []error
	for _, feedURL := range p.feeds {
		feed, err := p.fetchFeed(ctx, feedURL)
		if err != nil {
			p.logger.Debug().Err(err).Str("feed", feedURL).Msg("Feed fetch failed")
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		for _, entry := range feed.Items {
			if entry == nil {
				continue
			}
			if entry.PublishedParsed != nil && recency > 0 && entry.PublishedParsed.Before(cutoff) {
				continue
			}
			snippet := p.text.HTMLToText(entry.Description)
			if !matchesAny(terms, entry.Title, snippet) {
				continue
			}
			item := models.NewsItem{
				Title:   entry.Title,
				Snippet: snippet,
				URL:     entry.Link,
				Source:  feed.Title,
			}
			if entry.PublishedParsed != nil {
				published := *entry.PublishedParsed
				item.PublishedAt = &published
			}
			items = append(items, item)
		}
	}

	if len(p.feeds) == 0 {
		return nil, fmt.Errorf("no rss feeds configured")
	}
	if len(errs) == len(p.feeds) {
		return nil, errors.Join(errs...)
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].PublishedAt, items[j].PublishedAt
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})
	if maxResults > 0 && len(items) > maxResults {
		items = items[:maxResults]
	}
	return items, nil
}

func (p *RSSProvider) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status: %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed, nil
}

func queryTerms(query string) []string {
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if !queryNoise[f] {
			terms = append(terms, f)
		}
	}
	return terms
}

func matchesAny(terms []string, texts ...string) bool {
	if len(terms) == 0 {
		return true
	}
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}
