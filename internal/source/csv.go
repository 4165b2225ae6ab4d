package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/shopwatch/feed-uploader/internal/logging"
)

// CSVSource reads rows from local CSV files, optionally gzip-compressed.
type CSVSource struct {
	paths  []string
	tables []Table
}

// NewCSVSource creates a source over the given CSV file paths.
func NewCSVSource(paths []string) (*CSVSource, error) {
	if len(paths) == 0 {
		return nil, errors.New("csv source: no input paths configured")
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
	return &CSVSource{paths: paths}, nil
}

// Open reads the header of every input file.
func (s *CSVSource) Open(_ context.Context) ([]Table, error) {
	s.tables = s.tables[:0]
	for _, p := range s.paths {
		header, err := readCSVHeader(p)
		if err != nil {
			return nil, err
		}
		s.tables = append(s.tables, Table{Name: filepath.Base(p), Columns: header})
	}
	return s.tables, nil
}

// Stream implements RowSource.Stream for local CSV files.
func (s *CSVSource) Stream(ctx context.Context) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		log := logging.Component("source:csv")

		for _, p := range s.paths {
			n, err := streamCSVFile(ctx, p, rowCh)
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
func (s *CSVSource) Close() error { return nil }

func streamCSVFile(ctx context.Context, path string, rowCh chan<- Row) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r, closeFn, err := maybeGunzip(f, path)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	return streamCSV(ctx, r, path, rowCh)
}

func readCSVHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r, closeFn, err := maybeGunzip(f, path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	header, err := csv.NewReader(r).Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	return header, nil
}

// maybeGunzip wraps r in a gzip reader when the file name ends in .gz.
func maybeGunzip(r io.Reader, name string) (io.Reader, func() error, error) {
	if !strings.HasSuffix(name, ".gz") {
		return r, func() error { return nil }, nil
	}
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("gunzip %s: %w", name, err)
	}
	return zr, zr.Close, nil
}

// streamCSV decodes one CSV stream into rows. The first record is the header.
func streamCSV(ctx context.Context, r io.Reader, name string, rowCh chan<- Row) (int, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read header of %s: %w", name, err)
	}
	columns := make([]string, len(header))
	copy(columns, header)

	count := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("read %s: %w", name, err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			}
		}

		select {
		case rowCh <- row:
			count++
		case <-ctx.Done():
			return count, ctx.Err()
		}
	}
}
