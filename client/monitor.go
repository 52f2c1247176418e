package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xraph/vigil/api"
	"github.com/xraph/vigil/monitor"
)

// Overview lists every discovered queue with its stats.
func (c *Client) Overview(ctx context.Context) ([]monitor.QueueSummary, error) {
	var out []monitor.QueueSummary
	if err := c.do(ctx, http.MethodGet, "/v1/queues", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListJobs lists a queue's jobs in triage order. A zero limit uses the
// server's page size.
func (c *Client) ListJobs(ctx context.Context, backendID string, limit int) (*monitor.JobList, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out monitor.JobList
	if err := c.do(ctx, http.MethodGet, queuePath(backendID, "jobs"), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JobDetail fetches one job with its rendered payload.
func (c *Client) JobDetail(ctx context.Context, backendID, jobID string) (*monitor.JobDetail, error) {
	var out *monitor.JobDetail
	if err := c.do(ctx, http.MethodGet, queuePath(backendID, "jobs", jobID), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errEmpty
	}
	return out, nil
}

// Retry re-enqueues one job.
func (c *Client) Retry(ctx context.Context, backendID, jobID string) error {
	return c.do(ctx, http.MethodPost, queuePath(backendID, "jobs", jobID, "retry"), nil, nil)
}

// Release deletes one job.
func (c *Client) Release(ctx context.Context, backendID, jobID string) error {
	return c.do(ctx, http.MethodPost, queuePath(backendID, "jobs", jobID, "release"), nil, nil)
}

// RetryAllFailed re-enqueues every failed job in a queue.
func (c *Client) RetryAllFailed(ctx context.Context, backendID string) (*monitor.BulkResult, error) {
	return c.bulk(ctx, backendID, "retry-all")
}

// ReleaseAll deletes every job in a queue.
func (c *Client) ReleaseAll(ctx context.Context, backendID string) (*monitor.BulkResult, error) {
	return c.bulk(ctx, backendID, "release-all")
}

func (c *Client) bulk(ctx context.Context, backendID, action string) (*monitor.BulkResult, error) {
	var out monitor.BulkResult
	if err := c.do(ctx, http.MethodPost, queuePath(backendID, action), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FailedCount returns the failed-job badge count.
func (c *Client) FailedCount(ctx context.Context) (int64, error) {
	var out api.BadgeResponse
	if err := c.do(ctx, http.MethodGet, "/v1/badge", nil, &out); err != nil {
		return 0, err
	}
	return out.Failed, nil
}

// Settings returns the UI settings of the remote monitor.
func (c *Client) Settings(ctx context.Context) (*api.SettingsResponse, error) {
	var out api.SettingsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/settings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
