// Package client provides a Go client for a remote vigil monitor over its
// HTTP API.
//
// Usage:
//
//	c, err := client.New("https://ops.example.com/queue-monitor",
//	    client.WithToken("..."),
//	)
//
//	queues, err := c.Overview(ctx)
//	res, err := c.RetryAllFailed(ctx, "emailQueue")
//
// Errors for missing queues and jobs match vigil.ErrBackendNotFound and
// vigil.ErrJobNotFound, and backend failures match vigil.ErrAdapter.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/api"
	"github.com/xraph/vigil/backoff"
)

const defaultTimeout = 30 * time.Second

// Client calls the /v1 monitor API of a remote vigil instance.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	logger *slog.Logger

	maxRetries int
	backoff    backoff.Strategy
}

// New returns a client for the monitor mounted at baseURL, for example
// "http://localhost:8080" for `vigil serve` or the host app's base path
// for the Forge extension.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("vigil/client: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("vigil/client: base url %q must be http or https", baseURL)
	}

	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a failure envelope returned by the server.
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("vigil/client: %d %s: %s", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("vigil/client: %d %s", e.Status, e.Message)
}

// Unwrap maps the status and message back to the vigil sentinel errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound && e.Message == api.MsgQueueNotFound:
		return vigil.ErrBackendNotFound
	case e.Status == http.StatusNotFound && e.Message == api.MsgJobNotFound:
		return vigil.ErrJobNotFound
	case e.Status == http.StatusBadGateway:
		return vigil.ErrAdapter
	default:
		return nil
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// do sends one request and decodes the envelope's data into out when out
// is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	target := c.base.String() + path
	if q := query.Encode(); q != "" {
		target += "?" + q
	}

	retries := 0
	if method == http.MethodGet {
		retries = c.maxRetries
	}

	for attempt := 1; ; attempt++ {
		err := c.roundTrip(ctx, method, target, out)
		var te *transportError
		if err == nil || !errors.As(err, &te) || attempt > retries || c.backoff == nil {
			return err
		}

		delay := c.backoff.Delay(attempt)
		c.logger.Warn("vigil/client: request failed, retrying",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// transportError marks a request that never produced a response.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func (c *Client) roundTrip(ctx context.Context, method, target string, out any) error {
	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("vigil/client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{fmt.Errorf("vigil/client: %s %s: %w", method, target, err)}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("vigil/client: %s %s: status %d: decode envelope: %w",
			method, target, resp.StatusCode, err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Message, Detail: env.Error}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("vigil/client: decode data: %w", err)
		}
	}
	return nil
}

// queuePath builds an escaped path under /v1/queues from raw segments.
func queuePath(backendID string, rest ...string) string {
	parts := make([]string, 0, len(rest)+2)
	parts = append(parts, "/v1/queues", url.PathEscape(backendID))
	for _, seg := range rest {
		parts = append(parts, url.PathEscape(seg))
	}
	return strings.Join(parts, "/")
}

// errEmpty is returned when a successful response carries no data.
var errEmpty = errors.New("vigil/client: empty response")
