package pending

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SyncCompleteText is the human-readable text of the completion notification.
const SyncCompleteText = "All pending data has been synced."

// Uploader sends one record payload to the remote endpoint.
type Uploader interface {
	Upload(ctx context.Context, payload []byte) error
}

// Notifier tells connected client views that the queue has been drained.
type Notifier interface {
	SyncComplete(text string) int
}

// Result summarizes one replay run.
type Result struct {
	Total     int
	Uploaded  int
	Completed bool
	Duration  time.Duration
}

// Replayer drains a Store to an Uploader.
type Replayer struct {
	store    Store
	uploader Uploader
	notifier Notifier
	logger   zerolog.Logger
}

// NewReplayer creates a replayer. notifier may be nil.
func NewReplayer(store Store, uploader Uploader, notifier Notifier) *Replayer {
	return &Replayer{
		store:    store,
		uploader: uploader,
		notifier: notifier,
		logger:   log.With().Str("component", "pending-replay").Logger(),
	}
}

// Replay uploads every queued record strictly in order, deleting each one
// after its upload succeeded.
//
// An upload failure stops the run and is returned as *UploadError; the failed
// record and everything after it remain queued. Store failures are logged and
// swallowed. The completion notification is sent only when every record of
// the snapshot was uploaded and deleted, including when the queue was empty.
func (r *Replayer) Replay(ctx context.Context) (Result, error) {
	start := time.Now()
	result := Result{}

	// Step 1: Take one snapshot of the queue
	records, err := r.store.All(ctx)
	if err != nil {
		r.storeFailed(&StoreError{Op: "read", Err: err}, result)
		result.Duration = time.Since(start)
		return result, nil
	}
	result.Total = len(records)

	// Step 2: Upload then delete, one record at a time
	for _, rec := range records {
		if err := r.uploader.Upload(ctx, rec.Payload); err != nil {
			uploadErr := &UploadError{Key: rec.Key, Err: err}
			replayTotal.WithLabelValues("upload_failed").Inc()
			r.logger.Warn().
				Err(err).
				Str("key", rec.Key).
				Int("uploaded", result.Uploaded).
				Int("remaining", result.Total-result.Uploaded).
				Msg("Upload failed, leaving records queued")
			result.Duration = time.Since(start)
			return result, uploadErr
		}

		if err := r.store.Delete(ctx, rec.Key); err != nil {
			// The record was uploaded; it will be uploaded again on the next run
			r.storeFailed(&StoreError{Op: "delete", Err: err}, result)
			result.Duration = time.Since(start)
			return result, nil
		}

		uploadedTotal.Inc()
		result.Uploaded++
		r.logger.Debug().Str("key", rec.Key).Msg("Record synced")
	}

	// Step 3: Everything went through
	result.Completed = true
	result.Duration = time.Since(start)
	replayTotal.WithLabelValues("complete").Inc()

	clients := 0
	if r.notifier != nil {
		clients = r.notifier.SyncComplete(SyncCompleteText)
	}

	r.logger.Info().
		Int("uploaded", result.Uploaded).
		Int("clients_notified", clients).
		Dur("duration", result.Duration).
		Msg("Pending queue synced")

	return result, nil
}

func (r *Replayer) storeFailed(err *StoreError, result Result) {
	replayTotal.WithLabelValues("store_failed").Inc()
	r.logger.Error().
		Err(err).
		Int("uploaded", result.Uploaded).
		Msg("Replay aborted by store error")
}
