package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/middleware"
)

// Backend is one resolved queue backend.
type Backend struct {
	ID      string          `json:"id"`
	Label   string          `json:"label"`
	Channel string          `json:"channel"`
	Adapter backend.Adapter `json:"-"`
}

// Factory builds the adapter for a registered backend. It is invoked on
// every List and Resolve call and may fail when the backend is
// misconfigured.
type Factory func(ctx context.Context) (backend.Adapter, error)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for discovery failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithDefaultID changes the id of the primary backend that is excluded
// from management.
func WithDefaultID(id string) Option {
	return func(r *Registry) { r.defaultID = id }
}

// WithMiddleware wraps every resolved adapter in the given middleware chain.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(r *Registry) { r.middleware = append(r.middleware, mws...) }
}

// EntryOption configures a single registration.
type EntryOption func(*entry)

// WithChannel sets the channel a backend addresses. Defaults to the id.
func WithChannel(name string) EntryOption {
	return func(e *entry) { e.channel = name }
}

type entry struct {
	id      string
	channel string
	factory Factory
}

// Registry holds backend registrations. It is safe for concurrent use.
type Registry struct {
	logger     *slog.Logger
	defaultID  string
	middleware []middleware.Middleware

	mu       sync.RWMutex
	entries  []*entry
	watchers []*watcher
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		logger:    slog.Default(),
		defaultID: vigil.DefaultConfig().DefaultBackendID,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// DefaultID returns the id excluded from discovery.
func (r *Registry) DefaultID() string { return r.defaultID }

// Register adds or replaces a backend built by factory.
func (r *Registry) Register(id string, factory Factory, opts ...EntryOption) {
	e := &entry{id: id, channel: id, factory: factory}
	for _, o := range opts {
		o(e)
	}

	r.mu.Lock()
	replaced := false
	for i, existing := range r.entries {
		if existing.id == id {
			r.entries[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		r.entries = append(r.entries, e)
	}
	watchers := append([]*watcher(nil), r.watchers...)
	r.mu.Unlock()

	for _, w := range watchers {
		w.detach(id)
		if id != r.defaultID {
			r.attach(context.Background(), w, e)
		}
	}
}

// RegisterAdapter adds or replaces a backend with a ready adapter.
func (r *Registry) RegisterAdapter(id string, a backend.Adapter, opts ...EntryOption) {
	r.Register(id, func(context.Context) (backend.Adapter, error) { return a, nil }, opts...)
}

// Unregister removes a backend. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			break
		}
	}
	watchers := append([]*watcher(nil), r.watchers...)
	r.mu.Unlock()

	for _, w := range watchers {
		w.detach(id)
	}
}

// IDs returns the registered ids in registration order, including the
// default id if registered.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.id
	}
	return ids
}

// List resolves every registered backend except the default one, in
// registration order. Backends whose factory fails are logged and omitted.
func (r *Registry) List(ctx context.Context) []*Backend {
	entries := r.snapshot()
	out := make([]*Backend, 0, len(entries))
	for _, e := range entries {
		if e.id == r.defaultID {
			continue
		}
		b, err := r.build(ctx, e)
		if err != nil {
			r.logger.Warn("discovery: skipping backend",
				slog.String("backend", e.id),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, b)
	}
	return out
}

// Resolve returns the backend registered under id. It reports false for the
// default id, for unknown ids and for backends whose factory fails.
func (r *Registry) Resolve(ctx context.Context, id string) (*Backend, bool) {
	if id == "" || id == r.defaultID {
		return nil, false
	}
	e := r.lookup(id)
	if e == nil {
		return nil, false
	}
	b, err := r.build(ctx, e)
	if err != nil {
		r.logger.Warn("discovery: backend failed to resolve",
			slog.String("backend", id),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return b, true
}

func (r *Registry) snapshot() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*entry(nil), r.entries...)
}

func (r *Registry) lookup(id string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.id == id {
			return e
		}
	}
	return nil
}

var errNilAdapter = errors.New("factory returned nil adapter")

func (r *Registry) build(ctx context.Context, e *entry) (b *Backend, err error) {
	defer func() {
		if p := recover(); p != nil {
			b = nil
			err = fmt.Errorf("factory panicked: %v", p)
		}
	}()

	a, err := e.factory(ctx)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errNilAdapter
	}
	if len(r.middleware) > 0 {
		a = middleware.Wrap(a, middleware.Target{Backend: e.id, Channel: e.channel}, r.middleware...)
	}
	return &Backend{
		ID:      e.id,
		Label:   Label(e.id),
		Channel: e.channel,
		Adapter: a,
	}, nil
}
