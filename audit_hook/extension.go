package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/ext"
)

// Compile-time interface checks.
var (
	_ ext.Extension   = (*Extension)(nil)
	_ ext.JobFailed   = (*Extension)(nil)
	_ ext.JobRetried  = (*Extension)(nil)
	_ ext.JobReleased = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// LogRecorder writes audit events to logger at Info level.
func LogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, evt *AuditEvent) error {
		attrs := []slog.Attr{
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("outcome", evt.Outcome),
			slog.String("severity", evt.Severity),
		}
		if evt.Reason != "" {
			attrs = append(attrs, slog.String("reason", evt.Reason))
		}
		for k, v := range evt.Metadata {
			attrs = append(attrs, slog.Any(k, v))
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
		return nil
	})
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges vigil hooks to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// OnJobFailed implements ext.JobFailed. A first failure is a warning since
// the engine may still retry; repeated failures are critical.
func (e *Extension) OnJobFailed(ctx context.Context, ev backend.FailureEvent) error {
	severity := SeverityCritical
	if ev.Attempt <= 1 {
		severity = SeverityWarning
	}
	return e.record(ctx, ActionJobFailed, severity, OutcomeFailure, ev.JobID, ev.Error,
		"backend", ev.BackendID,
		"channel", ev.Channel,
		"description", ev.Description,
		"attempt", ev.Attempt,
		"occurred_at", ev.OccurredAt.UTC().Format(time.RFC3339),
	)
}

// OnJobRetried implements ext.JobRetried.
func (e *Extension) OnJobRetried(ctx context.Context, backendID, jobID string) error {
	return e.record(ctx, ActionJobRetried, SeverityInfo, OutcomeSuccess, jobID, "",
		"backend", backendID,
	)
}

// OnJobReleased implements ext.JobReleased.
func (e *Extension) OnJobReleased(ctx context.Context, backendID, jobID string) error {
	return e.record(ctx, ActionJobReleased, SeverityInfo, OutcomeSuccess, jobID, "",
		"backend", backendID,
	)
}

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
// Recorder errors are logged, never returned.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resourceID, reason string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   ResourceJob,
		Category:   CategoryJob,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
