package llm

import (
	"context"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy defines retry behaviour for transient provider failures.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt (default: 3)
	MaxRetries int

	// InitialBackoff is the wait before the first retry (default: 1s)
	InitialBackoff time.Duration

	// MaxBackoff caps any single wait (default: 30s)
	MaxBackoff time.Duration

	// BackoffMultiplier is applied to the backoff on each retry (default: 2)
	BackoffMultiplier float64

	// Jitter is the maximum fraction added to or removed from each wait (default: 0.1)
	Jitter float64
}

// Default retry constants.
const (
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 1 * time.Second
	DefaultMaxBackoff        = 30 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultJitter            = 0.1
)

// NewDefaultRetryPolicy returns a RetryPolicy with the default schedule
// 1s, 2s, 4s.
func NewDefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:        DefaultMaxRetries,
		InitialBackoff:    DefaultInitialBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
		Jitter:            DefaultJitter,
	}
}

// CalculateBackoff computes the wait before retry number attempt (0-based).
// A provider-suggested apiDelay longer than the computed wait replaces it.
// The result is capped at MaxBackoff; jitter is applied by the caller.
func (p *RetryPolicy) CalculateBackoff(attempt int, apiDelay time.Duration) time.Duration {
	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= p.BackoffMultiplier
	}

	backoff := time.Duration(float64(p.InitialBackoff) * multiplier)
	if apiDelay > backoff {
		backoff = apiDelay
	}
	if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	return backoff
}

// withJitter spreads d by up to ±Jitter. rnd returns values in [0, 1).
func (p *RetryPolicy) withJitter(d time.Duration, rnd func() float64) time.Duration {
	if p.Jitter <= 0 || rnd == nil {
		return d
	}
	delta := (rnd()*2 - 1) * p.Jitter
	return time.Duration(float64(d) * (1 + delta))
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func defaultRand() float64 {
	return rand.Float64()
}

// IsRateLimitError checks if an error looks like a provider rate limit.
// Matches 429 status codes and RESOURCE_EXHAUSTED errors.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(errStr), "rate limit")
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s"]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses the API-suggested retry delay from an error.
// Returns 0 if no delay is found in the error message.
//
// Example error message:
// "Error 429, Message: ... Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED"
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}

	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}

	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}
