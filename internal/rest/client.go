package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/r1ctl/internal/apierr"
	"github.com/muurk/r1ctl/internal/backoff"
	"github.com/muurk/r1ctl/internal/logging"
)

const (
	// DefaultTimeout is the fixed per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the retry budget for idempotent requests.
	DefaultMaxRetries = 3
)

// Client is an HTTP client for the controller's REST API.
type Client struct {
	// BaseURL is the base URL for the controller (e.g. "http://r1.local:8080").
	BaseURL string

	// Username and Password are optional HTTP Basic Auth credentials.
	Username string
	Password string

	// HTTPClient is the underlying HTTP client.
	HTTPClient *http.Client

	// MaxRetries is the retry budget applied to idempotent requests.
	MaxRetries int
}

// NewClient creates a client for the given base URL with default timeout
// and retry settings.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		MaxRetries: DefaultMaxRetries,
	}
}

// SetTimeout overrides the per-request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetAuth sets HTTP Basic Auth credentials.
func (c *Client) SetAuth(username, password string) {
	c.Username = username
	c.Password = password
}

// Get issues a GET request and decodes the JSON response into out (which
// may be nil to discard the body). GET is idempotent, so retryable failures
// are retried with exponential backoff up to MaxRetries additional attempts.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	var lastErr error

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff.Delay(attempt)
			logging.Debug("Retrying GET",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return apierr.Classify(ctx.Err())
			case <-time.After(delay):
			}
		}

		err := c.do(ctx, http.MethodGet, path, nil, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if !apierr.IsRetryable(err) {
			return err
		}
	}

	return lastErr
}

// Post issues a POST request with an optional JSON body. Never retried.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT request with an optional JSON body. Never retried.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE request. Never retried.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// GetRaw issues a GET request and returns the raw response body. Used where
// the caller runs its own wire transformer over the payload.
func (c *Client) GetRaw(ctx context.Context, path string) ([]byte, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, path, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// do performs a single request attempt and maps every failure into a
// categorized error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return apierr.Wrap(apierr.CategoryGeneral, "encode", fmt.Sprintf("failed to encode %s body", method), err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return apierr.Wrap(apierr.CategoryGeneral, "request", fmt.Sprintf("failed to create %s request", method), err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return apierr.Classify(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierr.FromStatus(resp.StatusCode, serverMessage(resp.Body))
	}

	if out == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierr.Classify(err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apierr.Wrap(apierr.CategoryGeneral, "decode", "failed to decode controller response", err)
	}

	return nil
}

// serverMessage extracts a controller-supplied error message from an error
// response body. The controller usually sends {"error": "..."} but older
// firmware responds with plain text.
func serverMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var wrapped struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		if wrapped.Error != "" {
			return wrapped.Error
		}
		if wrapped.Message != "" {
			return wrapped.Message
		}
	}

	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}
