// Package eastmoney provides a client for the East Money public fund and quote endpoints.
// This package centralizes all East Money interactions for the application.
package eastmoney

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// APIError represents an error from an East Money endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("East Money API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError represents a rate limit error.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("East Money rate limit exceeded, retry after %v", e.RetryAfter)
}

// flexFloat decodes numbers that East Money may send as numbers, numeric
// strings, or "-" when a value is unavailable (decoded as NaN).
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "-" || s == "null" {
		*f = flexFloat(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// Valid reports whether the value was present.
func (f flexFloat) Valid() bool {
	return !math.IsNaN(float64(f))
}

// flexString decodes a JSON string or number as a string.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(strings.TrimSpace(string(data)))
	return nil
}
