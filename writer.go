package paramount

import (
	"context"
	"time"
)

const (
	defaultQueueCapacity = 512
	maxBatchSize         = 50
	flushWindow          = 500 * time.Millisecond
	flushTimeout         = 5 * time.Second
)

// enqueue offers a row to the persistence queue without blocking.
func (r *Recorder) enqueue(row Row) bool {
	select {
	case r.queue <- row:
		return true
	default:
		return false
	}
}

// runWriter drains the queue, flushing in batches on size or on a timed
// window. Write failures are logged with full context and dropped; the
// recording path never surfaces them to callers.
func (r *Recorder) runWriter() {
	defer close(r.done)

	ticker := time.NewTicker(flushWindow)
	defer ticker.Stop()

	batch := make([]Row, 0, maxBatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := r.store.CreateOrAppend(ctx, r.table, ColRecordingID, batch); err != nil {
			r.log.WithError(err).WithFields(map[string]any{
				"table": r.table,
				"rows":  len(batch),
			}).Error("failed to persist recordings")
		}
		batch = batch[:0]
	}

	for {
		select {
		case row, ok := <-r.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, row)
			if len(batch) >= maxBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close stops accepting new rows, flushes what is queued and waits for the
// writer to exit.
func (r *Recorder) Close() error {
	close(r.queue)
	<-r.done
	return nil
}
