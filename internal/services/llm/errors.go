package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrLLMAuth is returned when the provider rejects the credentials. Not retried.
	ErrLLMAuth = errors.New("llm authentication failed")

	// ErrLLMQuota is returned when the account quota or credit is exhausted. Not retried.
	ErrLLMQuota = errors.New("llm quota exhausted")

	// ErrLLMGenerationFailed is returned when no usable text was produced
	// after retries, or the request was rejected as invalid.
	ErrLLMGenerationFailed = errors.New("llm generation failed")

	// errTransient marks a failure worth retrying.
	errTransient = errors.New("transient llm failure")

	// errEmptyResponse marks a response without text. Retried.
	errEmptyResponse = errors.New("empty response")
)

func classified(kind error, provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", kind, provider, err)
}

// classifyStatus maps an HTTP status and provider message to an error kind.
func classifyStatus(status int, message string) error {
	lower := strings.ToLower(message)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrLLMAuth
	case isQuotaMessage(lower):
		return ErrLLMQuota
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= http.StatusInternalServerError,
		status == 0:
		return errTransient
	case status == http.StatusPaymentRequired:
		return ErrLLMQuota
	}
	return ErrLLMGenerationFailed
}

func isQuotaMessage(lower string) bool {
	return strings.Contains(lower, "insufficient_quota") ||
		strings.Contains(lower, "exceeded your current quota") ||
		strings.Contains(lower, "credit balance") ||
		strings.Contains(lower, "billing")
}

// classifyMessage is used for providers whose errors only expose text.
func classifyMessage(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "UNAUTHENTICATED"),
		strings.Contains(msg, "PERMISSION_DENIED"),
		strings.Contains(lower, "api key not valid"),
		strings.Contains(msg, "Error 401"),
		strings.Contains(msg, "Error 403"):
		return ErrLLMAuth
	case strings.Contains(msg, "RESOURCE_EXHAUSTED") &&
		(strings.Contains(msg, "PerDay") || strings.Contains(msg, "limit: 0")):
		return ErrLLMQuota
	case isQuotaMessage(lower):
		return ErrLLMQuota
	case IsRateLimitError(err),
		strings.Contains(msg, "UNAVAILABLE"),
		strings.Contains(msg, "INTERNAL"),
		strings.Contains(msg, "DEADLINE_EXCEEDED"),
		strings.Contains(msg, "Error 500"),
		strings.Contains(msg, "Error 502"),
		strings.Contains(msg, "Error 503"),
		strings.Contains(msg, "Error 504"):
		return errTransient
	case strings.Contains(msg, "INVALID_ARGUMENT"),
		strings.Contains(msg, "Error 400"),
		strings.Contains(msg, "NOT_FOUND"):
		return ErrLLMGenerationFailed
	}
	// Network and unknown errors are assumed transient.
	return errTransient
}

// retryable reports whether err should be retried by the gateway.
func retryable(err error) bool {
	return !errors.Is(err, ErrLLMAuth) &&
		!errors.Is(err, ErrLLMQuota) &&
		!errors.Is(err, ErrLLMGenerationFailed)
}
