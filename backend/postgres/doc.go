// Package postgres implements backend.Adapter over a PostgreSQL "queue"
// table using pgx/v5. Embedded migrations create the table and a trigger
// that publishes a NOTIFY whenever a job's fail flag turns on; Listen turns
// those notifications into failure events.
package postgres
