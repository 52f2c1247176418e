package main

import (
	"context"

	"github.com/xraph/vigil/monitor"
)

// operator is the set of monitor operations the subcommands run. It is
// served either by a local monitor.Service or by a remote client.Client.
type operator interface {
	Overview(ctx context.Context) ([]monitor.QueueSummary, error)
	ListJobs(ctx context.Context, backendID string, limit int) (*monitor.JobList, error)
	JobDetail(ctx context.Context, backendID, jobID string) (*monitor.JobDetail, error)
	Retry(ctx context.Context, backendID, jobID string) error
	Release(ctx context.Context, backendID, jobID string) error
	RetryAllFailed(ctx context.Context, backendID string) (*monitor.BulkResult, error)
	ReleaseAll(ctx context.Context, backendID string) (*monitor.BulkResult, error)
	FailedCount(ctx context.Context) (int64, error)
}

// localOperator adapts the service methods that cannot fail.
type localOperator struct {
	*monitor.Service
}

func (l localOperator) Overview(ctx context.Context) ([]monitor.QueueSummary, error) {
	return l.Service.Overview(ctx), nil
}

func (l localOperator) FailedCount(ctx context.Context) (int64, error) {
	return l.Service.FailedCount(ctx), nil
}
