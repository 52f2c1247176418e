// Package bunbackend implements backend.Adapter on top of the Bun ORM so any
// database Bun supports can host the queue table. The schema is created from
// the model, which keeps it portable across dialects; tests run it against
// an in-memory SQLite database.
//
// Unlike the postgres backend there is no database-side notification: Fail
// emits the failure event to local subscribers directly.
package bunbackend
