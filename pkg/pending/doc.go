// Package pending implements the Pending-Sync Store: a durable queue of
// records awaiting upload, and the Replayer that drains it.
//
// Records are stored in SQLite and survive process restarts. Replay uploads
// records strictly one at a time in enqueue order and deletes each record
// only after its upload was acknowledged, so a crash between upload and
// delete produces at most a duplicate upload, never a lost record.
//
// Basic usage:
//
//	store := pending.NewSQLiteStore("/var/lib/offline-agent/pending.db")
//	defer store.Close()
//
//	rec, err := store.Enqueue(ctx, pending.Record{Payload: payload})
//
//	replayer := pending.NewReplayer(store, uploadClient, hub)
//	result, err := replayer.Replay(ctx)
//
// Replay returns *UploadError when the remote endpoint rejects a record. Store
// failures are logged and swallowed: the routine ends without a completion
// notification and the queue is left as it was.
//
// # Metrics
//
//   - offline_pending_enqueued_total: records added to the queue
//   - offline_pending_uploaded_total: records uploaded and deleted
//   - offline_pending_replay_total{result}: replay runs by result
//   - offline_pending_records: records currently queued
package pending
