// Package audithook is a vigil extension that records job failures and
// operator actions in an audit trail.
//
// Every hook emits a structured audit event through the [Recorder]
// interface. Failures are recorded with warning severity on the first
// attempt and critical severity afterwards; operator retries and releases
// are recorded as informational successes.
//
// # Usage
//
//	registry.Register(audithook.New(audithook.LogRecorder(logger)))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobRetried,
//	        audithook.ActionJobReleased,
//	    ),
//	)
package audithook
