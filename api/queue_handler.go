package api

import (
	"errors"
	"fmt"

	"github.com/xraph/forge"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/monitor"
)

var errBadLimit = errors.New("vigil/api: invalid limit")

func (a *API) listQueues(ctx forge.Context) error {
	return a.ok(ctx, a.svc.Overview(ctx.Context()), "")
}

func (a *API) listJobs(ctx forge.Context, req *ListJobsRequest) (*monitor.JobList, error) {
	if req.Limit < 0 || req.Limit > vigil.MaxJobsPerPage {
		return nil, a.fail(ctx, fmt.Errorf("%w: %d (want 0..%d)", errBadLimit, req.Limit, vigil.MaxJobsPerPage))
	}

	list, err := a.svc.ListJobs(ctx.Context(), ctx.Param("queueId"), req.Limit)
	if err != nil {
		return nil, a.fail(ctx, err)
	}
	return list, a.ok(ctx, list, "")
}

func (a *API) getJob(ctx forge.Context, _ *JobRequest) (*monitor.JobDetail, error) {
	d, err := a.svc.JobDetail(ctx.Context(), ctx.Param("queueId"), ctx.Param("jobId"))
	if err != nil {
		return nil, a.fail(ctx, err)
	}
	return d, a.ok(ctx, d, "")
}

func (a *API) badge(ctx forge.Context) error {
	return a.ok(ctx, BadgeResponse{Failed: a.svc.FailedCount(ctx.Context())}, "")
}

func (a *API) settings(ctx forge.Context) error {
	s := a.svc.Settings(ctx.Context())
	return a.ok(ctx, SettingsResponse{
		RefreshInterval: s.RefreshInterval,
		JobsPerPage:     s.JobsPerPage,
	}, "")
}
