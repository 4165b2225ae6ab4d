package uploader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shopwatch/feed-uploader/internal/config"
	"github.com/shopwatch/feed-uploader/internal/feed"
	"github.com/shopwatch/feed-uploader/internal/logging"
	"github.com/shopwatch/feed-uploader/internal/metrics"
	"github.com/shopwatch/feed-uploader/internal/shops"
	"github.com/shopwatch/feed-uploader/internal/source"
	"github.com/shopwatch/feed-uploader/internal/storage"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// Runner wires the whole pipeline for one run: rows are streamed from the
// source, built into documents, chunked into batches, and handed to the
// coordinator's worker pool.
type Runner struct {
	cfg      config.Config
	format   feed.Format
	src      source.RowSource
	resolver shops.Resolver
	store    storage.ObjectStore
}

// NewRunner creates a runner from validated configuration.
func NewRunner(cfg config.Config, src source.RowSource, resolver shops.Resolver, store storage.ObjectStore) (*Runner, error) {
	format, err := feed.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:      cfg,
		format:   format,
		src:      src,
		resolver: resolver,
		store:    store,
	}, nil
}

// prodResult carries what the producer goroutine learned back to Run.
type prodResult struct {
	rows    int
	docs    int
	rowErrs []*feed.RowError
	err     error
}

// Run executes the pipeline and returns the run summary. Only configuration
// and schema errors abort the run; per-row and per-document failures are
// folded into the summary.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	runID := uuid.New().String()
	log := logging.RunLogger(runID, string(r.format), r.cfg.AWSBucket)

	summary := &RunSummary{
		RunID:     runID,
		Format:    string(r.format),
		StartedAt: time.Now().UTC(),
	}

	labels := metrics.Labels{
		Format:     string(r.format),
		Bucket:     r.cfg.AWSBucket,
		SourceType: r.cfg.Source.Mode,
	}

	// Schema validation happens before any row is dispatched.
	tables, err := r.src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	required := []string{"shop_id", "slug"}
	if r.format == feed.FormatPriceHistory {
		required = append(required, "json")
	}
	for _, t := range tables {
		if err := source.RequireColumns(t, required...); err != nil {
			return nil, err
		}
	}
	log.Info("inputs validated", "tables", len(tables))

	fieldTypes, err := feed.ParseFieldTypes(r.cfg.FieldDatatypes)
	if err != nil {
		return nil, err
	}

	builder, err := feed.NewBuilder(r.format, feed.BuilderOptions{
		Resolver:       r.resolver,
		Directory:      r.cfg.AWSDirectory,
		Columns:        unionColumns(tables),
		FieldTypes:     fieldTypes,
		ExcludeColumns: r.cfg.ExcludeColumns,
	})
	if err != nil {
		return nil, err
	}

	chunker, err := feed.NewChunker(r.cfg.Chunksize)
	if err != nil {
		return nil, err
	}

	if err := r.store.Probe(ctx); err != nil {
		return nil, fmt.Errorf("store connection check: %w", err)
	}

	coord := NewCoordinator(r.store, r.cfg.Workers, Policy{
		MaxAttempts:    r.cfg.Retry.MaxAttempts,
		InitialBackoff: time.Duration(r.cfg.Retry.BackoffMs) * time.Millisecond,
	})
	coord.SetMetricsLabels(labels)

	batches := make(chan []feed.Document, r.cfg.Workers*2)
	prodCh := make(chan prodResult, 1)

	go func() {
		defer close(batches)
		prodCh <- r.produce(ctx, builder, chunker, batches, labels)
	}()

	coordSummary := coord.Run(ctx, batches)
	prod := <-prodCh

	summary.merge(coordSummary)
	for _, re := range prod.rowErrs {
		key := re.Key
		if key == "" {
			key = fmt.Sprintf("shop_id=%s/slug=%s", re.ShopID, re.Slug)
		}
		summary.recordFailure(key, re.Err.Error())
		if m := metrics.Get(); m != nil {
			l := labels
			l.Reason = rowErrorReason(re.Err)
			m.IncRowErrors(l)
		}
	}
	summary.FinishedAt = time.Now().UTC()

	// An aborted run is never reported clean, even when everything it
	// finished before the abort succeeded.
	if ctx.Err() != nil || errors.Is(prod.err, context.Canceled) {
		summary.Canceled = true
	}

	if prod.err != nil && !errors.Is(prod.err, context.Canceled) {
		return summary, fmt.Errorf("row stream: %w", prod.err)
	}

	log.Info("run complete",
		"rows", prod.rows,
		"documents", prod.docs,
		"attempted", summary.Attempted,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration_ms", summary.FinishedAt.Sub(summary.StartedAt).Milliseconds(),
	)
	return summary, nil
}

// produce streams rows through the builder and chunker into the batch queue.
// Document construction happens here, before dispatch, so workers only wait
// on store I/O.
func (r *Runner) produce(ctx context.Context, builder feed.Builder, chunker *feed.Chunker, batches chan<- []feed.Document, labels metrics.Labels) prodResult {
	res := prodResult{}

	emit := func(batch []feed.Document) bool {
		if m := metrics.Get(); m != nil {
			m.SetBatchQueueDepth(float64(len(batches)))
		}
		select {
		case batches <- batch:
			return true
		case <-ctx.Done():
			return false
		}
	}

	handle := func(docs []feed.Document, rowErrs []*feed.RowError) bool {
		res.rowErrs = append(res.rowErrs, rowErrs...)
		for _, d := range docs {
			res.docs++
			if m := metrics.Get(); m != nil {
				m.IncDocumentsBuilt(labels)
				m.ObserveDocumentBytes(labels, float64(len(d.Body)))
			}
			if batch := chunker.Add(d); batch != nil {
				if !emit(batch) {
					return false
				}
			}
		}
		return true
	}

	rowCh, errCh := r.src.Stream(ctx)
	for row := range rowCh {
		res.rows++
		if !handle(builder.Add(ctx, row)) {
			res.err = ctx.Err()
			return res
		}
	}
	if err := <-errCh; err != nil {
		res.err = err
		return res
	}
	if m := metrics.Get(); m != nil {
		m.AddRowsRead(labels, float64(res.rows))
	}

	// Input exhausted: flush grouped documents and the final partial batch.
	if !handle(builder.Flush(ctx)) {
		res.err = ctx.Err()
		return res
	}
	if batch := chunker.Flush(); len(batch) > 0 {
		emit(batch)
	}
	return res
}

// unionColumns returns the ordered union of all table columns, first seen
// first. Metadata key order depends on it being deterministic.
func unionColumns(tables []source.Table) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tables {
		for _, c := range t.Columns {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// rowErrorReason maps a row error to a low-cardinality metric label.
func rowErrorReason(err error) string {
	var cerr *feed.CoercionError
	switch {
	case errors.Is(err, feed.ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, feed.ErrMissingKeyColumn):
		return "missing_key_column"
	case errors.Is(err, shops.ErrNotFound):
		return "unknown_shop"
	case errors.As(err, &cerr):
		return "type_coercion"
	default:
		return "other"
	}
}
