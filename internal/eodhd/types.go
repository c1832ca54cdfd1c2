// Package eodhd provides a client for the EODHD (End of Day Historical Data) API.
// It serves overseas index and FX indicators when configured as the overseas provider.
package eodhd

import (
	"fmt"
	"time"
)

// APIError represents an error from the EODHD API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError represents a rate limit error.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("EODHD rate limit exceeded, retry after %v", e.RetryAfter)
}

// ErrUnknownIndicator is returned for keys missing from IndicatorSymbols.
type ErrUnknownIndicator struct {
	Key string
}

func (e *ErrUnknownIndicator) Error() string {
	return fmt.Sprintf("EODHD has no symbol for indicator %q", e.Key)
}
