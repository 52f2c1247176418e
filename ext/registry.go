package ext

import (
	"context"
	"log/slog"

	"github.com/xraph/vigil/backend"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type jobFailedEntry struct {
	name string
	hook JobFailed
}

type jobRetriedEntry struct {
	name string
	hook JobRetried
}

type jobReleasedEntry struct {
	name string
	hook JobReleased
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches events to them. It
// type-caches extensions at registration time so emit calls iterate only
// over extensions that implement the relevant hook.
//
// Register all extensions before events start flowing; emitting is safe
// from many goroutines, registering concurrently with emitting is not.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobFailed   []jobFailedEntry
	jobRetried  []jobRetriedEntry
	jobReleased []jobReleasedEntry
	shutdown    []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(JobRetried); ok {
		r.jobRetried = append(r.jobRetried, jobRetriedEntry{name, h})
	}
	if h, ok := e.(JobReleased); ok {
		r.jobReleased = append(r.jobReleased, jobReleasedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, ev backend.FailureEvent) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, ev); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// EmitJobRetried notifies all extensions that implement JobRetried.
func (r *Registry) EmitJobRetried(ctx context.Context, backendID, jobID string) {
	for _, e := range r.jobRetried {
		if err := e.hook.OnJobRetried(ctx, backendID, jobID); err != nil {
			r.logHookError("OnJobRetried", e.name, err)
		}
	}
}

// EmitJobReleased notifies all extensions that implement JobReleased.
func (r *Registry) EmitJobReleased(ctx context.Context, backendID, jobID string) {
	for _, e := range r.jobReleased {
		if err := e.hook.OnJobReleased(ctx, backendID, jobID); err != nil {
			r.logHookError("OnJobReleased", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a hook returns an error. Hook errors are
// never propagated to the caller.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
