package client

import (
	"log/slog"
	"net/http"

	"github.com/xraph/vigil/backoff"
)

// Option configures a Client.
type Option func(*Client)

// WithToken sets a bearer token sent with every request. The monitor
// itself does not authenticate; the host app in front of it may.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRetry retries read requests that fail in transport up to maxRetries
// times, waiting per the strategy between attempts. Actions are never
// retried.
func WithRetry(maxRetries int, s backoff.Strategy) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.backoff = s
	}
}
