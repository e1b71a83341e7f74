// Package notifications announces batch milestones to the outside world.
//
// Two transports are supported: ntfy (a plain HTTP POST per event) and redis
// pub/sub (one JSON document per event on a configured channel). NewService
// fans out to whichever are configured and degrades to a no-op when neither
// is. Delivery failures are returned to the caller, which logs and moves on;
// a notification never changes a job's outcome.
package notifications
