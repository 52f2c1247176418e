// Package ext defines the extension system for vigil.
//
// Extensions are notified of queue events observed or caused by the
// monitor and can react to them, for example by sending alerts or
// recording metrics. Each hook is a separate interface so extensions opt in
// only to the events they care about.
//
// # Implementing an Extension
//
//	type pager struct{}
//
//	func (p *pager) Name() string { return "pager" }
//
//	func (p *pager) OnJobFailed(ctx context.Context, ev backend.FailureEvent) error {
//	    return page(ctx, ev.BackendID, ev.JobID)
//	}
//
// # Hooks
//
//   - [JobFailed]: a job execution attempt failed in a discovered backend
//   - [JobRetried]: an operator re-enqueued a job
//   - [JobReleased]: an operator deleted a job
//   - [Shutdown]: the process is stopping
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Its EmitJobFailed method has
// the shape of a backend.FailureObserver, so it can be handed directly to
// discovery.Registry.Subscribe.
package ext
