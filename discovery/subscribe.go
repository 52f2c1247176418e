package discovery

import (
	"context"
	"log/slog"
	"sync"

	"github.com/xraph/vigil/backend"
)

type watcher struct {
	fn backend.FailureObserver

	mu      sync.Mutex
	cancels map[string]func()
	closed  bool
}

func (w *watcher) set(id string, cancel func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		cancel()
		return
	}
	w.cancels[id] = cancel
}

func (w *watcher) detach(id string) {
	w.mu.Lock()
	cancel, ok := w.cancels[id]
	delete(w.cancels, id)
	w.mu.Unlock()
	if ok {
		cancel()
	}
}

func (w *watcher) close() {
	w.mu.Lock()
	w.closed = true
	cancels := w.cancels
	w.cancels = nil
	w.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// Subscribe attaches fn to the failure stream of every discovered backend
// and of backends registered later. Events reach fn stamped with the
// backend id; events from a shared adapter are delivered only for the
// backend whose channel matches. The returned function detaches fn
// everywhere.
func (r *Registry) Subscribe(ctx context.Context, fn backend.FailureObserver) func() {
	w := &watcher{fn: fn, cancels: make(map[string]func())}

	r.mu.Lock()
	r.watchers = append(r.watchers, w)
	r.mu.Unlock()

	for _, e := range r.snapshot() {
		if e.id == r.defaultID {
			continue
		}
		r.attach(ctx, w, e)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			for i, x := range r.watchers {
				if x == w {
					r.watchers = append(r.watchers[:i:i], r.watchers[i+1:]...)
					break
				}
			}
			r.mu.Unlock()
			w.close()
		})
	}
}

func (r *Registry) attach(ctx context.Context, w *watcher, e *entry) {
	b, err := r.build(ctx, e)
	if err != nil {
		r.logger.Warn("discovery: cannot observe backend failures",
			slog.String("backend", e.id),
			slog.String("error", err.Error()),
		)
		return
	}

	backendID, channel := b.ID, b.Channel
	cancel := b.Adapter.Subscribe(func(ctx context.Context, ev backend.FailureEvent) {
		switch ev.Channel {
		case "":
			ev.Channel = channel
		case channel:
		default:
			// Another backend sharing this adapter owns the event.
			return
		}
		ev.BackendID = backendID
		w.fn(ctx, ev)
	})
	w.set(e.id, cancel)
}
