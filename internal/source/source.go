// Package source streams rows from tabular inputs.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Row is a flat mapping of column name to scalar value for one input record.
type Row map[string]any

// String returns the named column as a string, with ok reporting whether the
// column exists and holds a non-nil value.
func (r Row) String(column string) (string, bool) {
	v, ok := r[column]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return fmt.Sprint(v), true
	}
}

// Table describes one tabular input discovered by a source.
type Table struct {
	Name    string
	Columns []string
}

// RowSource streams rows from one or more tabular inputs in
// table-then-row order.
type RowSource interface {
	// Open prepares the source and returns the discovered input tables
	// with their column schemas. Must be called before Stream.
	Open(ctx context.Context) ([]Table, error)

	// Stream produces rows until the inputs are exhausted, an error occurs,
	// or the context is canceled.
	Stream(ctx context.Context) (<-chan Row, <-chan error)

	Close() error
}

// Config configures the row source.
type Config struct {
	Mode string `yaml:"mode"` // "csv" | "blob" | "parquet" | "snowflake"

	// csv / parquet: local file paths
	Paths []string `yaml:"paths"`

	// blob: bucket URL (s3://..., gs://...) and key prefix
	BucketURL string `yaml:"bucket_url"`
	Prefix    string `yaml:"prefix"`

	// snowflake
	Snowflake SnowflakeConfig `yaml:"snowflake"`
}

var ErrInvalidSourceMode = errors.New("invalid source mode")

// NewRowSource constructs a row source based on the configured mode.
func NewRowSource(cfg Config) (RowSource, error) {
	switch cfg.Mode {
	case "csv", "":
		return NewCSVSource(cfg.Paths)
	case "blob":
		return NewBlobSource(cfg.BucketURL, cfg.Prefix)
	case "parquet":
		return NewParquetSource(cfg.Paths)
	case "snowflake":
		return NewSnowflakeSource(cfg.Snowflake)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidSourceMode, cfg.Mode)
	}
}

// MissingColumnsError reports required columns absent from an input schema.
// It aborts the run before any row is dispatched.
type MissingColumnsError struct {
	Table   string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("table %s is missing required columns: [%s]",
		e.Table, strings.Join(e.Missing, "; "))
}

// RequireColumns verifies that every required column exists in the table
// schema, returning a MissingColumnsError otherwise.
func RequireColumns(t Table, required ...string) error {
	have := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		have[c] = true
	}

	var missing []string
	for _, c := range required {
		if !have[c] {
			missing = append(missing, c)
		}
	}

	if len(missing) > 0 {
		return &MissingColumnsError{Table: t.Name, Missing: missing}
	}
	return nil
}
