// Package notify raises an alert the first time a job fails.
//
// A [Trigger] is an ext.JobFailed extension. Wire it by registering it in
// an ext.Registry and subscribing that registry to the discovery registry:
//
//	exts := ext.NewRegistry(logger)
//	exts.Register(notify.NewTrigger(settings, mailer))
//	cancel := backends.Subscribe(ctx, exts.EmitJobFailed)
//	defer cancel()
//
// For every failure event the trigger loads the current settings and
// decides one [Outcome]. Only an event with attempt 1 and armed settings
// results in a [Message] handed to the [Mailer]. Transport failures are
// logged and never reach the job path.
package notify
