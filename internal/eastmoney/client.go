package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultFundBaseURL serves fund archive pages (holdings).
	DefaultFundBaseURL = "https://fundf10.eastmoney.com"

	// DefaultNAVBaseURL serves the NAV history API.
	DefaultNAVBaseURL = "https://api.fund.eastmoney.com"

	// DefaultQuoteBaseURL serves real-time quotes and board lists.
	DefaultQuoteBaseURL = "https://push2.eastmoney.com"

	// DefaultHistoryBaseURL serves daily kline series.
	DefaultHistoryBaseURL = "https://push2his.eastmoney.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 5

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Client is an East Money client.
type Client struct {
	fundBaseURL    string
	navBaseURL     string
	quoteBaseURL   string
	historyBaseURL string
	httpClient     *http.Client
	logger         arbor.ILogger
	limiter        *rate.Limiter
	now            func() time.Time
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithFundBaseURL sets the fund archive base URL.
func WithFundBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.fundBaseURL = baseURL
		}
	}
}

// WithNAVBaseURL sets the NAV API base URL.
func WithNAVBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.navBaseURL = baseURL
		}
	}
}

// WithQuoteBaseURL sets the quote API base URL.
func WithQuoteBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.quoteBaseURL = baseURL
		}
	}
}

// WithHistoryBaseURL sets the kline API base URL.
func WithHistoryBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.historyBaseURL = baseURL
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithClock overrides the clock used for timestamps missing from responses.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new East Money client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		fundBaseURL:    DefaultFundBaseURL,
		navBaseURL:     DefaultNAVBaseURL,
		quoteBaseURL:   DefaultQuoteBaseURL,
		historyBaseURL: DefaultHistoryBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// get performs a GET request and returns the raw body.
func (c *Client) get(ctx context.Context, baseURL, path string, params url.Values, referer string) ([]byte, error) {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RateLimitError{RetryAfter: time.Second}
	}

	reqURL := baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("url", baseURL+path).
			Msg("East Money request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: 5 * time.Second}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    truncate(string(body), 200),
			Endpoint:   path,
		}
	}

	return body, nil
}

// getJSON performs a GET request and decodes the JSON body into result.
func (c *Client) getJSON(ctx context.Context, baseURL, path string, params url.Values, referer string, result interface{}) error {
	body, err := c.get(ctx, baseURL, path, params, referer)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
