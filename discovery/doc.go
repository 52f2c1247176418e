// Package discovery keeps the set of queue backends an operator can manage.
//
// Backends are registered explicitly by id, either as a ready adapter or as
// a factory that builds one. Every List or Resolve call walks the current
// entries afresh, so backends added or removed at runtime are picked up on
// the next call. A factory that fails is logged and skipped without
// affecting the other entries.
//
// The default backend (id "queue" unless changed with WithDefaultID) is
// never listed and never resolves.
package discovery
