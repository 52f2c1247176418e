package vigil

import "errors"

var (
	// Lookup errors.
	ErrBackendNotFound = errors.New("vigil: backend not found")
	ErrJobNotFound     = errors.New("vigil: job not found")

	// ErrAdapter wraps errors returned by a backend adapter's own calls.
	ErrAdapter = errors.New("vigil: backend adapter failure")

	// ErrPayloadIntrospection is returned when a job payload cannot be
	// decoded or rendered. Callers degrade to a nil payload.
	ErrPayloadIntrospection = errors.New("vigil: payload introspection failed")

	// ErrNotificationDispatch wraps mail transport failures.
	ErrNotificationDispatch = errors.New("vigil: notification dispatch failed")

	// Configuration errors.
	ErrInvalidSettings = errors.New("vigil: invalid settings")
	ErrInvalidBackend  = errors.New("vigil: invalid backend definition")
)
