package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/shopwatch/feed-uploader/internal/logging"
)

// ParquetSource reads rows from local Parquet files.
type ParquetSource struct {
	paths  []string
	tables []Table
}

// NewParquetSource creates a source over the given Parquet file paths.
func NewParquetSource(paths []string) (*ParquetSource, error) {
	if len(paths) == 0 {
		return nil, errors.New("parquet source: no input paths configured")
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("invalid input path %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("input path %s is a directory", p)
		}
	}
	return &ParquetSource{paths: paths}, nil
}

// Open reads the schema of every input file.
func (s *ParquetSource) Open(_ context.Context) ([]Table, error) {
	s.tables = s.tables[:0]
	for _, p := range s.paths {
		pf, closeFn, err := openParquet(p)
		if err != nil {
			return nil, err
		}

		var columns []string
		for _, field := range pf.Schema().Fields() {
			columns = append(columns, field.Name())
		}
		closeFn()

		s.tables = append(s.tables, Table{Name: filepath.Base(p), Columns: columns})
	}
	return s.tables, nil
}

// Stream implements RowSource.Stream for local Parquet files.
func (s *ParquetSource) Stream(ctx context.Context) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		log := logging.Component("source:parquet")

		for _, p := range s.paths {
			n, err := streamParquetFile(ctx, p, rowCh)
			if err != nil {
				errCh <- err
				return
			}
			log.Info("table streamed", "table", filepath.Base(p), "rows", n)
		}
	}()

	return rowCh, errCh
}

// Close implements RowSource.
func (s *ParquetSource) Close() error { return nil }

func openParquet(path string) (*parquet.File, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	return pf, f.Close, nil
}

func streamParquetFile(ctx context.Context, path string, rowCh chan<- Row) (int, error) {
	pf, closeFn, err := openParquet(path)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	schema := pf.Schema()
	count := 0
	buf := make([]parquet.Row, 64)

	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()

		for {
			n, err := rows.ReadRows(buf)
			for _, prow := range buf[:n] {
				m := map[string]any{}
				if err := schema.Reconstruct(&m, prow); err != nil {
					rows.Close()
					return count, fmt.Errorf("decode row in %s: %w", path, err)
				}

				select {
				case rowCh <- Row(m):
					count++
				case <-ctx.Done():
					rows.Close()
					return count, ctx.Err()
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return count, fmt.Errorf("read %s: %w", path, err)
			}
		}

		if err := rows.Close(); err != nil {
			return count, fmt.Errorf("close row reader for %s: %w", path, err)
		}
	}

	return count, nil
}
