// Package redis implements backend.Adapter over Redis.
//
// Each job is a Hash and each channel is a Sorted Set of job ids scored by
// push time in milliseconds. A Set records every channel name so failed
// totals can be computed across channels. Failure events are published as
// JSON on a Pub/Sub channel and delivered to observers by Listen.
//
// Usage:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	a := redis.New(client, redis.WithKeyPrefix("app:"))
//	go a.Listen(ctx)
//
// The caller owns the client lifecycle.
package redis
