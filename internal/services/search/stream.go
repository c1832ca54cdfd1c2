package search

import (
	"github.com/ternarybob/fundlens/internal/interfaces"
	"github.com/ternarybob/fundlens/internal/models"
)

// Stream is a lazy, single-use sequence of search results.
type Stream struct {
	fetch   func() ([]models.NewsItem, error)
	started bool
	items   []models.NewsItem
	pos     int
	err     error
}

var _ interfaces.NewsStream = (*Stream)(nil)

func newStream(fetch func() ([]models.NewsItem, error)) *Stream {
	return &Stream{fetch: fetch, pos: -1}
}

// Next advances to the next item. The first call performs the search.
func (s *Stream) Next() bool {
	if !s.started {
		s.started = true
		s.items, s.err = s.fetch()
		s.fetch = nil
	}
	if s.pos+1 >= len(s.items) {
		s.pos = len(s.items)
		return false
	}
	s.pos++
	return true
}

// Item returns the current item.
func (s *Stream) Item() models.NewsItem {
	if s.pos < 0 || s.pos >= len(s.items) {
		return models.NewsItem{}
	}
	return s.items[s.pos]
}

// Err returns the search error, if any.
func (s *Stream) Err() error {
	return s.err
}

// Collect drains a stream.
func Collect(stream interfaces.NewsStream) ([]models.NewsItem, error) {
	var items []models.NewsItem
	for stream.Next() {
		items = append(items, stream.Item())
	}
	return items, stream.Err()
}
