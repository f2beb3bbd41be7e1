// Package trigger delivers Sync Triggers to the pending-record Replayer.
//
// A Dispatcher accepts triggers from any source (HTTP, connectivity monitor,
// cron schedule). Triggers whose tag does not match are ignored. At most one
// replay runs at a time; triggers that arrive during a run are coalesced into
// a single follow-up run. When a replay fails with an upload error the
// dispatcher re-runs it with exponential backoff and jitter, then waits for
// the next external trigger.
package trigger
