// Package backend defines the contract vigil consumes from a queue backend
// and the data types shared by every adapter: Record, Status, Stats and
// FailureEvent.
//
// A backend owns its jobs. Vigil only reads snapshots and asks for two
// mutations: Retry (re-enqueue) and Release (delete). The bundled adapters
// live in the memory, redis, postgres, bun and mongo subpackages; any type
// that satisfies Adapter can be registered with the discovery registry.
//
// Status is never stored. Classify derives it from the fail flag and the
// reservation timestamp, and Sort applies the triage order used by every
// listing: reserved work first, then waiting, then failed, newest first
// within each group.
package backend
