// Package payload renders opaque job payloads for display.
//
// A backend stores each job payload as bytes plus a class name. The Registry
// maps class names to decoders. A decoded value that implements
// Introspectable exposes its fields as a flat name to value mapping; any
// other value is shown as a typed placeholder. Field values that cannot be
// represented as text are replaced with placeholders too, and values that
// hold live resources (anything implementing io.Closer) render as
// "[resource]".
//
// Rendering never panics and never returns partial state: on failure it
// returns an error matching vigil.ErrPayloadIntrospection and callers show
// no payload.
package payload
