package eodhd

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

	"github.com/ternarybob/fundlens/internal/models"
)

const (
	// DefaultBaseURL is the base URL for the EODHD API.
	DefaultBaseURL = "https://eodhd.com/api"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10

	dateLayout = "2006-01-02"
)

// Client is an EODHD API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
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

// NewClient creates a new EODHD API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// get fetches path with the account token attached and decodes the JSON
// body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &RateLimitError{RetryAfter: time.Second}
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_token", c.apiKey)
	query.Set("fmt", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("eodhd: build request for %s: %w", path, err)
	}

	if c.logger != nil {
		c.logger.Debug().Str("path", path).Msg("EODHD request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("eodhd: %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: time.Minute}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Message: string(body), Endpoint: path}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("eodhd: decode %s: %w", path, err)
	}
	return nil
}

// GetEOD returns daily bars for symbol (TICKER.EXCHANGE, e.g. "GSPC.INDX")
// in ascending date order. A zero from or to leaves that bound open.
func (c *Client) GetEOD(ctx context.Context, symbol string, from, to time.Time) (EODResponse, error) {
	query := url.Values{"period": {"d"}, "order": {"a"}}
	if !from.IsZero() {
		query.Set("from", from.Format(dateLayout))
	}
	if !to.IsZero() {
		query.Set("to", to.Format(dateLayout))
	}

	var bars EODResponse
	if err := c.get(ctx, "/eod/"+symbol, query, &bars); err != nil {
		return nil, err
	}
	for i := range bars {
		if d, err := time.Parse(dateLayout, bars[i].DateStr); err == nil {
			bars[i].Date = d
		}
	}
	return bars, nil
}

// GetRealTimeQuote retrieves the (possibly delayed) live quote for a symbol.
func (c *Client) GetRealTimeQuote(ctx context.Context, symbol string) (*RealTimeQuote, error) {
	var result RealTimeQuote
	if err := c.get(ctx, "/real-time/"+symbol, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetIndicator resolves an overseas indicator key through the real-time
// endpoint, falling back to the last two EOD bars when the live quote has
// no close.
func (c *Client) GetIndicator(ctx context.Context, key string) (models.Indicator, error) {
	symbol, ok := IndicatorSymbols[key]
	if !ok {
		return models.Indicator{}, &ErrUnknownIndicator{Key: key}
	}

	ind := models.Indicator{Key: key, Name: IndicatorNames[key]}

	quote, err := c.GetRealTimeQuote(ctx, symbol)
	if err == nil && quote.Close > 0 {
		ind.Value = quote.Close
		ind.Change = quote.Change
		ind.ChangePct = quote.ChangePct
		ind.Timestamp = time.Unix(quote.Timestamp, 0)
		return ind, nil
	}

	to := time.Now()
	bars, eodErr := c.GetEOD(ctx, symbol, to.AddDate(0, 0, -10), to)
	if eodErr != nil {
		if err != nil {
			return models.Indicator{}, fmt.Errorf("real-time: %v; eod: %w", err, eodErr)
		}
		return models.Indicator{}, eodErr
	}
	if len(bars) < 2 {
		return models.Indicator{}, fmt.Errorf("insufficient EOD history for %s", symbol)
	}

	last, prev := bars[len(bars)-1], bars[len(bars)-2]
	ind.Value = last.Close
	ind.Change = last.Close - prev.Close
	if prev.Close != 0 {
		ind.ChangePct = ind.Change / prev.Close * 100
	}
	ind.Timestamp = last.Date
	return ind, nil
}
