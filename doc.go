// Package vigil is an operator-facing monitor and control surface for one or
// more independently configured job queues.
//
// Vigil does not run jobs. It reads snapshots from queue backends through a
// narrow adapter contract, derives status and aggregate statistics, orders
// jobs for triage, exposes opaque payloads safely, and requests retry or
// release of individual jobs. A failure trigger observes each backend's
// failure stream and alerts an operator the first time a job fails.
//
// # Quick Start
//
//	reg := discovery.New()
//	reg.RegisterAdapter("emailQueue", redisbackend.New(client))
//
//	svc := monitor.New(reg, vigil.StaticSettings(vigil.DefaultSettings()))
//	list, err := svc.ListJobs(ctx, "emailQueue", 0)
//
// # Architecture
//
// The backend package defines the adapter contract every queue backend
// satisfies, with bundled adapters for memory, Redis, Postgres, bun and
// MongoDB. The discovery package resolves backend ids to adapters, the
// monitor package implements list, detail, retry and release, and the
// notify package hosts the failure notification trigger. The api package
// mounts everything on a Forge router, the extension package packages it as
// a Forge extension, and the client package calls a running monitor
// remotely. The vigil command in cmd/vigil runs either side.
package vigil
