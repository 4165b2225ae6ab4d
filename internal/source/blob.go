package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	_ "gocloud.dev/blob/s3blob"  // S3 driver

	"github.com/shopwatch/feed-uploader/internal/logging"
)

// BlobSource reads CSV tables from object storage via gocloud.dev.
// Works with AWS S3 (s3://), GCS (gs://), and S3-compatible stores.
type BlobSource struct {
	bucket *blob.Bucket
	prefix string
	keys   []string
}

// NewBlobSource opens the bucket behind the given gocloud URL.
// For AWS: s3://bucket-name?region=us-east-1
// For custom endpoints: s3://bucket?endpoint=https://minio.local&s3ForcePathStyle=true
func NewBlobSource(bucketURL, prefix string) (*BlobSource, error) {
	if bucketURL == "" {
		return nil, errors.New("blob source: bucket_url not configured")
	}

	bucket, err := blob.OpenBucket(context.Background(), bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}

	return &BlobSource{bucket: bucket, prefix: prefix}, nil
}

// Open lists CSV objects under the prefix and reads their headers.
func (s *BlobSource) Open(ctx context.Context) ([]Table, error) {
	s.keys = s.keys[:0]

	iter := s.bucket.List(&blob.ListOptions{Prefix: s.prefix})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		if obj.IsDir {
			continue
		}
		if strings.HasSuffix(obj.Key, ".csv") || strings.HasSuffix(obj.Key, ".csv.gz") {
			s.keys = append(s.keys, obj.Key)
		}
	}
	sort.Strings(s.keys)

	if len(s.keys) == 0 {
		return nil, fmt.Errorf("no CSV objects found under prefix %q", s.prefix)
	}

	var tables []Table
	for _, key := range s.keys {
		header, err := s.readHeader(ctx, key)
		if err != nil {
			return nil, err
		}
		tables = append(tables, Table{Name: key, Columns: header})
	}
	return tables, nil
}

// Stream implements RowSource.Stream for object-store CSV tables.
func (s *BlobSource) Stream(ctx context.Context) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		log := logging.Component("source:blob")

		for _, key := range s.keys {
			n, err := s.streamObject(ctx, key, rowCh)
			if err != nil {
				errCh <- err
				return
			}
			log.Info("table streamed", "key", key, "rows", n)
		}
	}()

	return rowCh, errCh
}

func (s *BlobSource) streamObject(ctx context.Context, key string, rowCh chan<- Row) (int, error) {
	br, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return 0, fmt.Errorf("open object %s: %w", key, err)
	}
	defer br.Close()

	r, closeFn, err := maybeGunzip(br, key)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	return streamCSV(ctx, r, key, rowCh)
}

func (s *BlobSource) readHeader(ctx context.Context, key string) ([]string, error) {
	br, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", key, err)
	}
	defer br.Close()

	r, closeFn, err := maybeGunzip(br, key)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	header, err := csv.NewReader(r).Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", key, err)
	}
	return header, nil
}

// Close releases the bucket connection.
func (s *BlobSource) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}
