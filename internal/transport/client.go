package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 30 * time.Second

	// ContentType is sent with every message.
	ContentType = "application/xml"

	maxResponseSize = 4 << 20
	maxErrorBody    = 512
)

// Config holds the settings for a [Client].
type Config struct {
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
	// Retry enables retries; nil means no retries.
	Retry *RetryConfig
	// UserAgent is sent when non-empty.
	UserAgent string
}

// Client posts XML messages to the registry.
type Client struct {
	httpClient *http.Client
	retry      *RetryConfig
	userAgent  string
}

// NewClient creates a client from cfg.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		httpClient: cfg.HTTPClient,
		retry:      cfg.Retry,
		userAgent:  cfg.UserAgent,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if c.retry == nil {
		c.retry = DefaultRetryConfig()
	}
	return c, nil
}

// resolve accepts only absolute http(s) URLs; endpoints come fully formed
// from the resolver.
func resolve(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not an absolute http(s) url", ErrInvalidEndpoint, endpoint)
	}
	return endpoint, nil
}

// Send posts body to endpoint and returns the response body. Non-2xx
// responses return *HTTPError; failures below HTTP return *NetworkError.
func (c *Client) Send(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	url, err := resolve(endpoint)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &NetworkError{Err: err, URL: url, Attempt: attempt}
		}

		resp, status, err := c.attempt(ctx, url, body)
		if err == nil {
			return resp, nil
		}
		var netErr *NetworkError
		if errors.As(err, &netErr) {
			netErr.Attempt = attempt
		} else if status == 0 {
			return nil, err
		}
		lastErr = err

		if !c.retry.ShouldRetry(attempt, status) {
			return nil, lastErr
		}
		if err := c.retry.Wait(ctx, attempt); err != nil {
			return nil, &NetworkError{Err: err, URL: url, Attempt: attempt}
		}
	}
}

// attempt performs one POST. The returned status is zero on network failure.
func (c *Client) attempt(ctx context.Context, url string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("Accept", ContentType)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &NetworkError{Err: err, URL: url}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, &NetworkError{Err: err, URL: url}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, resp.StatusCode, &HTTPError{StatusCode: resp.StatusCode, URL: url, Body: data}
	}

	return data, resp.StatusCode, nil
}
