// Package monitor implements the monitoring and control operations over
// registered queue backends: listing with triage order and stats, job
// detail with safe payload rendering, retry and release of single jobs,
// best-effort bulk retry and release, a multi-backend overview and the
// failed-job badge count.
//
// The Service holds no state of its own. Every call resolves its backend
// through the discovery registry, reads or mutates through the backend's
// adapter, and returns. Errors match the sentinels in the vigil package:
// ErrBackendNotFound, ErrJobNotFound and ErrAdapter.
package monitor
