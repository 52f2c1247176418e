// Command vigil inspects and operates job queue backends. It runs the
// monitor HTTP API with failure notifications (serve) or performs one-shot
// operator actions against the configured backends.
//
// Usage:
//
//	vigil --backend email=redis://localhost:6379/0?channel=email queues
//	vigil --backend jobs=postgres://localhost/app jobs jobs --limit 20
//	vigil --backend jobs=sqlite:///var/lib/app/queue.db retry-all jobs
//	VIGIL_BACKEND=email=redis://localhost:6379 vigil serve --addr :8080
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
