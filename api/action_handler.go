package api

import (
	"github.com/xraph/forge"

	"github.com/xraph/vigil/monitor"
)

func (a *API) retryJob(ctx forge.Context, _ *JobRequest) (*struct{}, error) {
	if err := a.svc.Retry(ctx.Context(), ctx.Param("queueId"), ctx.Param("jobId")); err != nil {
		return nil, a.fail(ctx, err)
	}
	return nil, a.ok(ctx, nil, msgRetried)
}

func (a *API) releaseJob(ctx forge.Context, _ *JobRequest) (*struct{}, error) {
	if err := a.svc.Release(ctx.Context(), ctx.Param("queueId"), ctx.Param("jobId")); err != nil {
		return nil, a.fail(ctx, err)
	}
	return nil, a.ok(ctx, nil, msgReleased)
}

func (a *API) retryAll(ctx forge.Context, _ *QueueRequest) (*monitor.BulkResult, error) {
	res, err := a.svc.RetryAllFailed(ctx.Context(), ctx.Param("queueId"))
	if err != nil {
		return nil, a.fail(ctx, err)
	}
	return res, a.ok(ctx, res, bulkMessage(res, msgRetriedAll))
}

func (a *API) releaseAll(ctx forge.Context, _ *QueueRequest) (*monitor.BulkResult, error) {
	res, err := a.svc.ReleaseAll(ctx.Context(), ctx.Param("queueId"))
	if err != nil {
		return nil, a.fail(ctx, err)
	}
	return res, a.ok(ctx, res, bulkMessage(res, msgReleasedAll))
}

// bulkMessage reports success even when some ids were skipped; the
// failures travel in the data.
func bulkMessage(res *monitor.BulkResult, done string) string {
	if res.OK() {
		return done
	}
	return msgPartialBulk
}
