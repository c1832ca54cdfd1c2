package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/fundlens/internal/models"
)

// NewsStream is a finite, single-use sequence of search hits. The
// underlying query is issued on the first call to Next; a stream cannot be
// replayed, callers must search again for fresh results.
type NewsStream interface {
	Next() bool
	Item() models.NewsItem
	// Err returns the terminal error, if any, once Next has returned false.
	Err() error
}

// SearchProvider is one search backend.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string, recency time.Duration, maxResults int) ([]models.NewsItem, error)
}

// SearchService issues normalized, retried searches.
type SearchService interface {
	Search(ctx context.Context, query string, recency time.Duration, maxResults int) NewsStream
}
