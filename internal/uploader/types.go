// Package uploader drives the concurrent upload of document batches and
// aggregates per-document outcomes into a run summary.
package uploader

import (
	"time"
)

// UploadResult is the outcome of uploading a single document.
type UploadResult struct {
	Key      string
	Attempts int
	Err      error // nil on success
}

// FailedUpload identifies one document that could not be uploaded.
type FailedUpload struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// RunSummary is the final per-run report. It is the single source of truth
// for what happened: total attempted, total succeeded, and every failed key
// with its reason.
type RunSummary struct {
	RunID      string         `json:"run_id"`
	Format     string         `json:"format"`
	Attempted  int            `json:"attempted"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Failures   []FailedUpload `json:"failures,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`

	// Canceled reports that the run was aborted before the input was fully
	// processed. Counts cover only completed outcomes.
	Canceled bool `json:"canceled,omitempty"`
}

// OK reports whether the run completed and every attempted document
// succeeded. A run with any failure, or one that was aborted, is reported
// failed as a whole, even though the summary still enumerates each key's
// individual outcome.
func (s *RunSummary) OK() bool {
	return s.Failed == 0 && !s.Canceled
}

// record folds one upload result into the summary.
func (s *RunSummary) record(res UploadResult) {
	s.Attempted++
	if res.Err == nil {
		s.Succeeded++
		return
	}
	s.Failed++
	s.Failures = append(s.Failures, FailedUpload{Key: res.Key, Reason: res.Err.Error()})
}

// recordFailure folds a failure that happened before upload (row-level
// validation, unknown shop) into the summary.
func (s *RunSummary) recordFailure(key, reason string) {
	s.Attempted++
	s.Failed++
	s.Failures = append(s.Failures, FailedUpload{Key: key, Reason: reason})
}

// merge absorbs a partial summary produced by one worker.
func (s *RunSummary) merge(partial *RunSummary) {
	s.Attempted += partial.Attempted
	s.Succeeded += partial.Succeeded
	s.Failed += partial.Failed
	s.Failures = append(s.Failures, partial.Failures...)
	s.Canceled = s.Canceled || partial.Canceled
}
