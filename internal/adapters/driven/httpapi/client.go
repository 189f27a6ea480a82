// Package httpapi holds the JSON-over-HTTP plumbing shared by the model
// provider adapters: request encoding, status mapping and client-side
// throttling.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// HeaderRetryAfter is the retry-after header (seconds or HTTP date).
const HeaderRetryAfter = "Retry-After"

// maxErrorBody caps how much of an error response is quoted in messages.
const maxErrorBody = 2048

// Client posts JSON to a provider API.
type Client struct {
	// Provider names the service in error messages.
	Provider string

	// BaseURL is prepended to every path.
	BaseURL string

	// Header is added to every request (e.g. Authorization).
	Header http.Header

	HTTP    *http.Client
	Limiter *Limiter
}

// New creates a client with the given timeout.
func New(provider, baseURL string, timeout time.Duration) *Client {
	return &Client{
		Provider: provider,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Header:   make(http.Header),
		HTTP:     &http.Client{Timeout: timeout},
	}
}

// SetBearer sets the Authorization header.
func (c *Client) SetBearer(token string) {
	if token != "" {
		c.Header.Set("Authorization", "Bearer "+token)
	}
}

// Do sends a request with a JSON body (nil for none) and returns the open
// response. Non-2xx statuses are converted to errors and the body is closed.
func (c *Client) Do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body := io.Reader(http.NoBody)
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", c.Provider, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", c.Provider, err)
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: send request: %w", c.Provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, StatusError(c.Provider, resp, time.Now())
	}
	return resp, nil
}

// PostJSON posts in and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	resp, err := c.Do(ctx, http.MethodPost, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.Provider, err)
	}
	return nil
}

// Get issues a GET and discards the body; used for health checks.
func (c *Client) Get(ctx context.Context, path string) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// StatusError converts a failed response into an error. 429 becomes a
// *domain.RateLimitError carrying the server's Retry-After.
func StatusError(provider string, resp *http.Response, now time.Time) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	err := fmt.Errorf("%s error (status %d): %s", provider, resp.StatusCode, msg)

	if resp.StatusCode == http.StatusTooManyRequests {
		return &domain.RateLimitError{
			RetryAfter: ParseRetryAfter(resp.Header.Get(HeaderRetryAfter), now),
			Err:        err,
		}
	}
	return err
}

// ParseRetryAfter reads a Retry-After value given in seconds or as an HTTP
// date. Unparseable or past values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
