package extension

import (
	"log/slog"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/backoff"
	"github.com/xraph/vigil/discovery"
	"github.com/xraph/vigil/ext"
	mw "github.com/xraph/vigil/middleware"
	"github.com/xraph/vigil/notify"
	"github.com/xraph/vigil/payload"
)

// ExtOption configures the vigil Forge extension.
type ExtOption func(*Extension)

type backendReg struct {
	id      string
	adapter backend.Adapter
	opts    []discovery.EntryOption
}

// WithBackend registers a queue backend. Adapters with a
// Listen(context.Context) error method get their failure stream supervised
// between Start and Stop.
func WithBackend(id string, a backend.Adapter, opts ...discovery.EntryOption) ExtOption {
	return func(e *Extension) {
		e.backends = append(e.backends, backendReg{id: id, adapter: a, opts: opts})
	}
}

// WithExtension registers a vigil extension (lifecycle hooks).
func WithExtension(x ext.Extension) ExtOption {
	return func(e *Extension) {
		e.exts = append(e.exts, x)
	}
}

// WithMiddleware adds adapter middleware to every backend.
func WithMiddleware(m mw.Middleware) ExtOption {
	return func(e *Extension) {
		e.mws = append(e.mws, m)
	}
}

// WithMailer sets the transport for failure notifications. Defaults to a
// notify.LogMailer.
func WithMailer(m notify.Mailer) ExtOption {
	return func(e *Extension) {
		e.mailer = m
	}
}

// WithSettingsSource replaces the settings derived from Config, for hosts
// that keep operator settings in their own store.
func WithSettingsSource(src vigil.SettingsSource) ExtOption {
	return func(e *Extension) {
		e.settings = src
	}
}

// WithPayloads sets the payload registry used to render job details.
func WithPayloads(r *payload.Registry) ExtOption {
	return func(e *Extension) {
		e.payloads = r
	}
}

// WithBackoff sets the reconnect strategy for failure listeners.
func WithBackoff(b backoff.Strategy) ExtOption {
	return func(e *Extension) {
		e.bo = b
	}
}

// WithBasePath sets the URL prefix for all monitor routes.
func WithBasePath(path string) ExtOption {
	return func(e *Extension) {
		e.config.BasePath = path
	}
}

// WithConfig sets the extension configuration directly.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithRequireConfig requires config to be present in the app configuration.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) ExtOption {
	return func(e *Extension) {
		e.config.RequireConfig = require
	}
}

// WithLogger sets the structured logger for vigil components.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}
