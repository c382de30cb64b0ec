// Package binance implements the USDⓈ-M futures market data REST adapter.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"perp-crowd-scanner/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL        = "https://fapi.binance.com"
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 20 * time.Second
	DefaultUserAgent      = "Mozilla/5.0"

	maxErrorBody = 512
)

// Client issues GET requests against the futures REST API.
type Client struct {
	baseURL        string
	client         *http.Client
	retry          RetryPolicy
	connectTimeout time.Duration
	readTimeout    time.Duration
	userAgent      string
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithConnectTimeout sets the dial and TLS handshake timeout.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

// WithReadTimeout sets the default per-attempt read timeout.
func WithReadTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.readTimeout = d
	}
}

// WithHTTPClient sets custom http.Client. The connect timeout option is ignored.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new REST client using the given retry policy.
func NewClient(baseURL string, retry RetryPolicy, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:        baseURL,
		retry:          retry,
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
		userAgent:      DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Transport: newTransport(c.connectTimeout)}
	}
	return c
}

// newTransport bounds connection setup independently of the read timeout.
func newTransport(connectTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// HTTPClient returns the underlying http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs a GET with retries and decodes the JSON body into out.
// readTimeout <= 0 uses the client default. Every failure is a *FetchError.
func (c *Client) Get(ctx context.Context, path string, params url.Values, readTimeout time.Duration, out interface{}) error {
	if readTimeout <= 0 {
		readTimeout = c.readTimeout
	}

	start := time.Now()
	err := c.get(ctx, path, params, readTimeout, out)
	observability.RecordHTTPRequest(path, time.Since(start).Seconds(), err)
	return err
}

func (c *Client) get(ctx context.Context, path string, params url.Values, readTimeout time.Duration, out interface{}) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	delay := c.retry.BaseDelay
	maxAttempts := c.retry.attempts()
	var lastErr error
	lastStatus := 0

	attempt := 0
	for attempt < maxAttempts {
		attempt++
		if attempt > 1 {
			observability.RecordHTTPRetry(path)
			select {
			case <-ctx.Done():
				return &FetchError{Path: path, Attempts: attempt - 1, Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay = c.retry.next(delay)
		}

		status, body, err := c.do(ctx, fullURL, readTimeout)
		if err != nil {
			lastErr, lastStatus = err, 0
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if status >= 200 && status < 300 {
			if out == nil {
				return nil
			}
			if err := decode(body, out); err != nil {
				return &FetchError{Path: path, StatusCode: status, Attempts: attempt, Err: err}
			}
			return nil
		}

		lastErr, lastStatus = statusError(status, body), status
		if !c.retry.IsRetryable(status) {
			break
		}
	}

	return &FetchError{Path: path, StatusCode: lastStatus, Attempts: attempt, Err: lastErr}
}

// do performs a single attempt bounded by readTimeout.
func (c *Client) do(ctx context.Context, fullURL string, readTimeout time.Duration) (int, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, fullURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func decode(body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// statusError prefers the exchange error payload over the raw body.
func statusError(status int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return &apiErr
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return fmt.Errorf("unexpected status %d: %s", status, string(body))
}

// IsFetchError reports whether err is a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
