// Package mongo implements backend.Adapter over a MongoDB "queue"
// collection. Listings and counters are aggregation pipelines evaluated by
// the server. Failure events come from a change stream (see Listen), which
// requires a replica set or sharded cluster.
package mongo
