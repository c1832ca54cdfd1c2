package httpclient

import (
	"net/http"
	"time"
)

// DefaultTimeout applies when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// NewDefaultHTTPClient creates an HTTP client shared by the upstream data
// clients. Connections are pooled per host since most calls go to a handful
// of quote endpoints.
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 8
	transport.IdleConnTimeout = 90 * time.Second

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
