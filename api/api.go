package api

import (
	"log/slog"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/vigil/monitor"
)

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// API wires the forge HTTP handlers to a monitor.Service.
type API struct {
	svc    *monitor.Service
	router forge.Router
	logger *slog.Logger
}

// New creates an API. A nil router is replaced by forge.NewRouter when
// Handler is called.
func New(svc *monitor.Service, router forge.Router, opts ...Option) *API {
	a := &API{svc: svc, router: router, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	a.RegisterRoutes(a.router)
	return a.router.Handler()
}

// RegisterRoutes registers all monitor routes into the given forge router
// with OpenAPI metadata.
func (a *API) RegisterRoutes(router forge.Router) {
	a.registerQueueRoutes(router)
	a.registerJobRoutes(router)
	a.registerMetaRoutes(router)
}

func (a *API) registerQueueRoutes(router forge.Router) {
	g := router.Group("/v1", forge.WithGroupTags("queues"))

	_ = g.GET("/queues", a.listQueues,
		forge.WithSummary("List queues"),
		forge.WithDescription("Returns every discovered backend with its stats. A backend that cannot be read carries an error instead."),
		forge.WithOperationID("listQueues"),
		forge.WithResponseSchema(http.StatusOK, "Queue overview", []monitor.QueueSummary{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/queues/:queueId/jobs", a.listJobs,
		forge.WithSummary("List jobs"),
		forge.WithDescription("Returns jobs in triage order (reserved, waiting, failed) with the queue's stats."),
		forge.WithOperationID("getJobInfo"),
		forge.WithRequestSchema(ListJobsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Job list", &monitor.JobList{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/queues/:queueId/retry-all", a.retryAll,
		forge.WithSummary("Retry all failed jobs"),
		forge.WithDescription("Re-enqueues every failed job in the queue. Jobs that cannot be retried are reported and skipped."),
		forge.WithOperationID("retryAll"),
		forge.WithRequestSchema(QueueRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Bulk result", &monitor.BulkResult{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/queues/:queueId/release-all", a.releaseAll,
		forge.WithSummary("Release all jobs"),
		forge.WithDescription("Deletes every job in the queue regardless of status."),
		forge.WithOperationID("releaseAll"),
		forge.WithRequestSchema(QueueRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Bulk result", &monitor.BulkResult{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) registerJobRoutes(router forge.Router) {
	g := router.Group("/v1", forge.WithGroupTags("jobs"))

	_ = g.GET("/queues/:queueId/jobs/:jobId", a.getJob,
		forge.WithSummary("Get job"),
		forge.WithDescription("Returns one job with execution metadata and its rendered payload."),
		forge.WithOperationID("getJobDetails"),
		forge.WithRequestSchema(JobRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Job details", &monitor.JobDetail{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/queues/:queueId/jobs/:jobId/retry", a.retryJob,
		forge.WithSummary("Retry job"),
		forge.WithDescription("Re-enqueues one job."),
		forge.WithOperationID("retry"),
		forge.WithRequestSchema(JobRequest{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/queues/:queueId/jobs/:jobId/release", a.releaseJob,
		forge.WithSummary("Release job"),
		forge.WithDescription("Deletes one job."),
		forge.WithOperationID("release"),
		forge.WithRequestSchema(JobRequest{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) registerMetaRoutes(router forge.Router) {
	g := router.Group("/v1", forge.WithGroupTags("meta"))

	_ = g.GET("/badge", a.badge,
		forge.WithSummary("Failed job badge"),
		forge.WithDescription("Returns the number of failed jobs across all discovered backends."),
		forge.WithOperationID("badge"),
		forge.WithResponseSchema(http.StatusOK, "Badge count", BadgeResponse{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/settings", a.settings,
		forge.WithSummary("UI settings"),
		forge.WithDescription("Returns the refresh interval and page size used by the monitor UI."),
		forge.WithOperationID("settings"),
		forge.WithResponseSchema(http.StatusOK, "UI settings", SettingsResponse{}),
		forge.WithErrorResponses(),
	)
}

// ListJobsRequest is bound from the getJobInfo path and query. A zero
// Limit uses the configured page size.
type ListJobsRequest struct {
	QueueID string `json:"-" path:"queueId"`
	Limit   int    `json:"limit,omitempty" query:"limit"`
}

// QueueRequest addresses one queue.
type QueueRequest struct {
	QueueID string `json:"-" path:"queueId"`
}

// JobRequest addresses one job in a queue.
type JobRequest struct {
	QueueID string `json:"-" path:"queueId"`
	JobID   string `json:"-" path:"jobId"`
}

// BadgeResponse is the payload of /v1/badge.
type BadgeResponse struct {
	Failed int64 `json:"failed"`
}

// SettingsResponse is the payload of /v1/settings.
type SettingsResponse struct {
	RefreshInterval int `json:"refreshInterval"`
	JobsPerPage     int `json:"jobsPerPage"`
}
