// Package transport provides the HTTP plumbing shared by all provider
// adapters: a JSON client that surfaces provider status codes as typed
// errors, and a retry executor with bounded exponential backoff.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FairHead/eventourismo-discover/pkg/errors"
)

// DefaultHTTPTimeout bounds a single provider request.
const DefaultHTTPTimeout = 30 * time.Second

// defaultUserAgent identifies the pipeline to providers.
const defaultUserAgent = "eventourismo-discover/1.0"

// maxErrorBody caps how much of an error response body is carried in
// error messages.
const maxErrorBody = 512

// Client performs JSON requests against one provider's API.
type Client struct {
	http      *http.Client
	provider  string
	userAgent string
	bearer    string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithBearer adds an Authorization: Bearer header to every request.
func WithBearer(token string) Option {
	return func(c *Client) {
		c.bearer = token
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a transport client for the named provider.
func New(provider string, opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: DefaultHTTPTimeout},
		provider:  provider,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON performs a GET request and decodes the JSON response into target.
// Non-2xx responses are returned as *errors.APIError carrying the status
// code and any Retry-After hint, so callers can classify them.
func (c *Client) GetJSON(ctx context.Context, rawURL string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &errors.ValidationError{Field: "url", Value: rawURL, Message: err.Error()}
	}
	return c.doJSON(req, target)
}

// PostForm performs a form-encoded POST request and decodes the JSON
// response into target. The Overpass API takes its query this way.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &errors.ValidationError{Field: "url", Value: rawURL, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.doJSON(req, target)
}

// doJSON executes the request and decodes the response.
func (c *Client) doJSON(req *http.Request, target any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport-level failure: no status code, retryable.
		return &errors.APIError{
			Provider: c.provider,
			Endpoint: req.URL.Path,
			Message:  "request failed",
			Err:      err,
		}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errors.APIError{
			Provider: c.provider,
			Endpoint: req.URL.Path,
			Message:  "reading response body",
			Err:      err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return &errors.APIError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Endpoint:   req.URL.Path,
			Message:    msg,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", c.provider+" "+req.URL.Path, err)
	}
	return nil
}

// parseRetryAfter parses a Retry-After header value, which is either a
// number of seconds or an HTTP date. Returns zero when absent or invalid.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
