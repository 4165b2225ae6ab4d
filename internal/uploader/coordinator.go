package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopwatch/feed-uploader/internal/feed"
	"github.com/shopwatch/feed-uploader/internal/logging"
	"github.com/shopwatch/feed-uploader/internal/metrics"
	"github.com/shopwatch/feed-uploader/internal/storage"
)

// Coordinator owns a fixed pool of workers draining a batch queue. Each
// worker uploads its batch's documents strictly one at a time; a failed
// document never aborts its batch or any other batch.
type Coordinator struct {
	store   storage.ObjectStore
	workers int
	policy  Policy
	labels  metrics.Labels
	log     *slog.Logger
}

// NewCoordinator creates a coordinator with the given worker count.
func NewCoordinator(store storage.ObjectStore, workers int, policy Policy) *Coordinator {
	if workers < 1 {
		workers = 1
	}
	return &Coordinator{
		store:   store,
		workers: workers,
		policy:  policy.normalized(),
		log:     logging.Component("coordinator"),
	}
}

// SetMetricsLabels sets the labels applied to upload metrics.
func (c *Coordinator) SetMetricsLabels(l metrics.Labels) {
	c.labels = l
}

// Run dispatches batches from the queue to the worker pool, waits for every
// worker to drain, and returns the merged summary. On context cancellation
// no new batch is claimed and in-flight uploads are allowed to complete, so
// the summary reflects only completed outcomes.
func (c *Coordinator) Run(ctx context.Context, batches <-chan []feed.Document) *RunSummary {
	c.log.Info("dispatching", "workers", c.workers)

	start := time.Now()
	partials := make([]*RunSummary, c.workers)
	var wg sync.WaitGroup

	for i := 0; i < c.workers; i++ {
		partials[i] = &RunSummary{}
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.workerLoop(ctx, workerID, batches, partials[workerID])
		}(i)
	}

	// Draining: wait for all workers to finish their claimed batches.
	wg.Wait()

	summary := &RunSummary{}
	for _, p := range partials {
		summary.merge(p)
	}

	if m := metrics.Get(); m != nil {
		if elapsed := time.Since(start).Seconds(); elapsed > 0 {
			m.SetUploadsPerSecond(float64(summary.Succeeded) / elapsed)
		}
	}

	c.log.Info("drained",
		"attempted", summary.Attempted,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return summary
}

// workerLoop claims batches until the queue closes or the run is aborted.
// The queue guarantees each batch is claimed at most once.
func (c *Coordinator) workerLoop(ctx context.Context, workerID int, batches <-chan []feed.Document, partial *RunSummary) {
	log := logging.WorkerLogger(workerID)
	log.Debug("worker started")
	defer log.Debug("worker stopped")

	batchIndex := 0
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			c.processBatch(ctx, workerID, batchIndex, batch, partial)
			batchIndex++
		}
	}
}

// processBatch uploads a batch's documents sequentially, in chunk order.
func (c *Coordinator) processBatch(ctx context.Context, workerID, batchIndex int, batch []feed.Document, partial *RunSummary) {
	correlationID := logging.GenerateCorrelationID()
	ctx = logging.WithCorrelationID(ctx, correlationID)
	log := logging.BatchLogger(correlationID, batchIndex, len(batch)).With("worker_id", workerID)

	log.Debug("processing batch")
	start := time.Now()
	failed := 0

	for _, doc := range batch {
		// After an abort, finish nothing new; outcomes already recorded
		// stand and the remaining documents go unreported.
		if ctx.Err() != nil {
			log.Warn("run aborted, abandoning rest of batch")
			return
		}

		res := c.uploadOne(ctx, doc)
		partial.record(res)
		if res.Err != nil {
			failed++
			log.Warn("upload failed", "key", doc.Key, "attempts", res.Attempts, "error", res.Err)
		}
	}

	log.Info("batch done",
		"uploaded", len(batch)-failed,
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// uploadOne performs a single document upload with bounded retries.
func (c *Coordinator) uploadOne(ctx context.Context, doc feed.Document) UploadResult {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		attempts = attempt
		// Detach the put from run cancellation: an in-flight upload is
		// allowed to complete even when the run is aborted.
		putCtx := context.WithoutCancel(ctx)

		start := time.Now()
		if m := metrics.Get(); m != nil {
			m.IncInFlightUploads()
		}
		err := c.store.Put(putCtx, doc.Key, doc.Body)
		if m := metrics.Get(); m != nil {
			m.DecInFlightUploads()
		}
		elapsed := time.Since(start)

		if m := metrics.Get(); m != nil {
			m.ObserveUploadDuration(c.labels, elapsed.Seconds())
		}

		if err == nil {
			if m := metrics.Get(); m != nil {
				m.IncUploadsSucceeded(c.labels)
			}
			return UploadResult{Key: doc.Key, Attempts: attempt}
		}
		lastErr = err

		if !c.policy.Retryable(err) || attempt == c.policy.MaxAttempts {
			break
		}

		if m := metrics.Get(); m != nil {
			m.IncRetryAttempts(c.labels)
		}

		select {
		case <-time.After(c.policy.BackoffFor(attempt)):
		case <-ctx.Done():
			if m := metrics.Get(); m != nil {
				m.IncUploadsFailed(c.labels)
			}
			return UploadResult{
				Key:      doc.Key,
				Attempts: attempt,
				Err:      fmt.Errorf("aborted during retry backoff: %w", lastErr),
			}
		}
	}

	if m := metrics.Get(); m != nil {
		m.IncUploadsFailed(c.labels)
	}
	return UploadResult{Key: doc.Key, Attempts: attempts, Err: lastErr}
}
