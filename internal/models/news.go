package models

import "time"

// NewsItem is one search hit. PublishedAt is nil when the provider omits it.
type NewsItem struct {
	Query       string     `json:"query"`
	Title       string     `json:"title"`
	Snippet     string     `json:"snippet"`
	URL         string     `json:"url"`
	Source      string     `json:"source,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Rank        int        `json:"rank"`            // 1 is most relevant
	Topic       string     `json:"topic,omitempty"` // TopicFund or TopicHolding
}

// News topics.
const (
	TopicFund    = "fund"
	TopicHolding = "holding"
)

// Source is a citation listed in the report appendix.
type Source struct {
	Category string `json:"category" yaml:"category"`
	Title    string `json:"title" yaml:"title"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
}
