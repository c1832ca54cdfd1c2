// Package search implements the open-intelligence adapter: a retried,
// normalised search over one configured provider, exposed as a lazy
// single-use stream.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fundlens/internal/interfaces"
	"github.com/ternarybob/fundlens/internal/models"
)

// ErrSearchUnavailable is returned by a stream whose query failed on every attempt.
var ErrSearchUnavailable = errors.New("search unavailable")

// ErrQuotaExhausted marks provider errors that retrying cannot fix.
var ErrQuotaExhausted = errors.New("search quota exhausted")

const (
	DefaultMaxAttempts = 3
	DefaultBaseBackoff = time.Second
	DefaultTimeout     = 30 * time.Second

	backoffFactor = 2

	maxTitleRunes   = 100
	maxSnippetRunes = 200
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configure retry behaviour.
type Options struct {
	MaxAttempts int
	BaseBackoff time.Duration
	Timeout     time.Duration
	Sleep       SleepFunc
}

// Service implements interfaces.SearchService over a single provider.
type Service struct {
	provider    interfaces.SearchProvider
	maxAttempts int
	baseBackoff time.Duration
	timeout     time.Duration
	sleep       SleepFunc
	logger      arbor.ILogger
}

var _ interfaces.SearchService = (*Service)(nil)

// NewService wraps provider with retries and normalisation.
func NewService(provider interfaces.SearchProvider, logger arbor.ILogger, opts Options) *Service {
	s := &Service{
		provider:    provider,
		maxAttempts: opts.MaxAttempts,
		baseBackoff: opts.BaseBackoff,
		timeout:     opts.Timeout,
		sleep:       opts.Sleep,
		logger:      logger,
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.baseBackoff <= 0 {
		s.baseBackoff = DefaultBaseBackoff
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	return s
}

// Search returns a stream for query. Nothing is fetched until the first
// call to Next.
func (s *Service) Search(ctx context.Context, query string, recency time.Duration, maxResults int) interfaces.NewsStream {
	return newStream(func() ([]models.NewsItem, error) {
		return s.fetch(ctx, query, recency, maxResults)
	})
}

func (s *Service) fetch(ctx context.Context, query string, recency time.Duration, maxResults int) ([]models.NewsItem, error) {
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		items, err := s.provider.Search(attemptCtx, query, recency, maxResults)
		cancel()

		if err == nil {
			return normalize(query, items, maxResults), nil
		}
		lastErr = err

		if ctx.Err() != nil || IsQuotaError(err) || attempt == s.maxAttempts {
			break
		}

		backoff := s.backoff(attempt)
		s.logger.Warn().
			Err(err).
			Str("provider", s.provider.Name()).
			Str("query", query).
			Int("attempt", attempt).
			Str("backoff", backoff.String()).
			Msg("Search failed, retrying")

		if err := s.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
	}

	s.logger.Warn().
		Err(lastErr).
		Str("provider", s.provider.Name()).
		Str("query", query).
		Msg("Search unavailable")
	return nil, fmt.Errorf("%w: %s: %w", ErrSearchUnavailable, s.provider.Name(), lastErr)
}

// backoff returns base * factor^(attempt-1).
func (s *Service) backoff(attempt int) time.Duration {
	d := s.baseBackoff
	for i := 1; i < attempt; i++ {
		d *= backoffFactor
	}
	return d
}

// IsQuotaError reports whether err signals an exhausted quota or plan
// limit rather than a transient rate limit.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExhausted) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "insufficient_quota") ||
		strings.Contains(msg, "quota exceeded") ||
		strings.Contains(msg, "usage limit")
}

func normalize(query string, items []models.NewsItem, maxResults int) []models.NewsItem {
	out := make([]models.NewsItem, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item.Title = truncateRunes(strings.TrimSpace(item.Title), maxTitleRunes)
		item.Snippet = truncateRunes(strings.TrimSpace(item.Snippet), maxSnippetRunes)
		if item.Title == "" && item.Snippet == "" {
			continue
		}
		key := item.URL
		if key == "" {
			key = item.Title
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		item.Query = query
		item.Rank = len(out) + 1
		out = append(out, item)
		if maxResults > 0 && len(out) == maxResults {
			break
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
