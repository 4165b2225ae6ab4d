// Package metrics provides Prometheus metrics for the feed uploader.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the feed uploader.
type Metrics struct {
	// Input metrics
	RowsRead  *prometheus.CounterVec
	RowErrors *prometheus.CounterVec

	// Document metrics
	DocumentsBuilt *prometheus.CounterVec

	// Upload metrics
	UploadsSucceeded *prometheus.CounterVec
	UploadsFailed    *prometheus.CounterVec
	RetryAttempts    *prometheus.CounterVec

	// Timing metrics
	UploadDuration *prometheus.HistogramVec

	// Size metrics
	DocumentBytes *prometheus.HistogramVec

	// Pipeline metrics
	BatchQueueDepth  prometheus.Gauge
	InFlightUploads  prometheus.Gauge
	UploadsPerSecond prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // Address for metrics HTTP server (e.g., ":9090")
}

var defaultMetrics *Metrics

// Init initializes the metrics package with global metrics.
// Call this once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "feed_uploader"
	}

	m := &Metrics{
		RowsRead: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_read_total",
				Help:      "Total number of input rows read",
			},
			[]string{"format", "source_type"},
		),
		RowErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "row_errors_total",
				Help:      "Total number of rows rejected during document building",
			},
			[]string{"format", "reason"},
		),
		DocumentsBuilt: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_built_total",
				Help:      "Total number of documents built for upload",
			},
			[]string{"format"},
		),
		UploadsSucceeded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_succeeded_total",
				Help:      "Total number of documents uploaded successfully",
			},
			[]string{"format", "bucket"},
		),
		UploadsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_failed_total",
				Help:      "Total number of documents that failed to upload",
			},
			[]string{"format", "bucket"},
		),
		RetryAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_attempts_total",
				Help:      "Total number of upload retry attempts",
			},
			[]string{"format", "bucket"},
		),
		UploadDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_duration_seconds",
				Help:      "Time to upload a single document to storage",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"format", "bucket"},
		),
		DocumentBytes: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "document_bytes",
				Help:      "Size of uploaded documents in bytes",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 10), // 64B to ~16MB
			},
			[]string{"format"},
		),
		BatchQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "batch_queue_depth",
				Help:      "Current number of batches waiting for a worker",
			},
		),
		InFlightUploads: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "in_flight_uploads",
				Help:      "Number of documents currently being uploaded",
			},
		),
		UploadsPerSecond: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "uploads_per_second",
				Help:      "Current document upload rate",
			},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer starts an HTTP server for Prometheus metrics scraping.
// Blocks until the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}

// Labels is a convenience type for metric labels.
type Labels struct {
	Format     string
	Bucket     string
	SourceType string
	Reason     string
}

// AddRowsRead adds to the rows read counter.
func (m *Metrics) AddRowsRead(l Labels, count float64) {
	m.RowsRead.WithLabelValues(l.Format, l.SourceType).Add(count)
}

// IncRowErrors increments the row errors counter.
func (m *Metrics) IncRowErrors(l Labels) {
	m.RowErrors.WithLabelValues(l.Format, l.Reason).Inc()
}

// IncDocumentsBuilt increments the documents built counter.
func (m *Metrics) IncDocumentsBuilt(l Labels) {
	m.DocumentsBuilt.WithLabelValues(l.Format).Inc()
}

// IncUploadsSucceeded increments the uploads succeeded counter.
func (m *Metrics) IncUploadsSucceeded(l Labels) {
	m.UploadsSucceeded.WithLabelValues(l.Format, l.Bucket).Inc()
}

// IncUploadsFailed increments the uploads failed counter.
func (m *Metrics) IncUploadsFailed(l Labels) {
	m.UploadsFailed.WithLabelValues(l.Format, l.Bucket).Inc()
}

// IncRetryAttempts increments the retry attempts counter.
func (m *Metrics) IncRetryAttempts(l Labels) {
	m.RetryAttempts.WithLabelValues(l.Format, l.Bucket).Inc()
}

// ObserveUploadDuration records the time taken for a single upload.
func (m *Metrics) ObserveUploadDuration(l Labels, seconds float64) {
	m.UploadDuration.WithLabelValues(l.Format, l.Bucket).Observe(seconds)
}

// ObserveDocumentBytes records the size of a built document.
func (m *Metrics) ObserveDocumentBytes(l Labels, bytes float64) {
	m.DocumentBytes.WithLabelValues(l.Format).Observe(bytes)
}

// SetBatchQueueDepth sets the current batch queue depth.
func (m *Metrics) SetBatchQueueDepth(depth float64) {
	m.BatchQueueDepth.Set(depth)
}

// IncInFlightUploads increments the in-flight uploads gauge.
func (m *Metrics) IncInFlightUploads() {
	m.InFlightUploads.Inc()
}

// DecInFlightUploads decrements the in-flight uploads gauge.
func (m *Metrics) DecInFlightUploads() {
	m.InFlightUploads.Dec()
}

// SetUploadsPerSecond sets the current upload rate.
func (m *Metrics) SetUploadsPerSecond(rate float64) {
	m.UploadsPerSecond.Set(rate)
}
