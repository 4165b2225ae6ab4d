// Package report writes the run report artifacts to a local directory.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopwatch/feed-uploader/internal/uploader"
)

// Writer persists run summaries for operators and follow-up tooling.
type Writer struct {
	dir string
}

// NewWriter creates a report writer rooted at dir.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("report directory not configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create report directory %s: %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

// Write stores the summary as run-summary.json and, when the run had
// failures, the failed keys as failed-uploads.csv. Files are written via
// temp + rename so a crash never leaves a truncated report.
func (w *Writer) Write(summary *uploader.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := w.writeFile("run-summary.json", data); err != nil {
		return err
	}

	if len(summary.Failures) == 0 {
		return nil
	}
	return w.writeFailedCSV(summary.Failures)
}

func (w *Writer) writeFailedCSV(failures []uploader.FailedUpload) error {
	records := [][]string{{"key", "reason"}}
	for _, f := range failures {
		records = append(records, []string{f.Key, f.Reason})
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("encode failed uploads: %w", err)
	}

	return w.writeFile("failed-uploads.csv", buf.Bytes())
}

func (w *Writer) writeFile(name string, data []byte) error {
	path := filepath.Join(w.dir, name)
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s to %s: %w", tempPath, path, err)
	}
	return nil
}
