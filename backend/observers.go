package backend

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/vigil/id"
)

// Observers is a fan-out list of failure observers. Adapters embed it to
// satisfy Adapter.Subscribe.
type Observers struct {
	mu      sync.RWMutex
	nextKey int
	entries []observerEntry
}

type observerEntry struct {
	key int
	fn  FailureObserver
}

// Subscribe implements Adapter.Subscribe.
func (o *Observers) Subscribe(fn FailureObserver) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextKey++
	key := o.nextKey
	o.entries = append(o.entries, observerEntry{key: key, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { o.remove(key) })
	}
}

func (o *Observers) remove(key int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, e := range o.entries {
		if e.key == key {
			o.entries = append(o.entries[:i:i], o.entries[i+1:]...)
			return
		}
	}
}

// Emit delivers ev to every observer in subscription order. A missing ID or
// timestamp is filled in first.
func (o *Observers) Emit(ctx context.Context, ev FailureEvent) {
	if ev.ID.IsNil() {
		ev.ID = id.NewFailureID()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	o.mu.RLock()
	fns := make([]FailureObserver, len(o.entries))
	for i, e := range o.entries {
		fns[i] = e.fn
	}
	o.mu.RUnlock()

	for _, fn := range fns {
		fn(ctx, ev)
	}
}

// Len returns the number of active observers.
func (o *Observers) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.entries)
}
