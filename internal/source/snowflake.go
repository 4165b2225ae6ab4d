package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver

	"github.com/shopwatch/feed-uploader/internal/logging"
)

// SnowflakeConfig configures the Snowflake row source.
type SnowflakeConfig struct {
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
	Query     string `yaml:"query"`
}

// SnowflakeSource streams the result set of a Snowflake query as rows.
type SnowflakeSource struct {
	cfg     SnowflakeConfig
	db      *sql.DB
	rows    *sql.Rows
	columns []string
}

// NewSnowflakeSource opens a connection pool to Snowflake.
func NewSnowflakeSource(cfg SnowflakeConfig) (*SnowflakeSource, error) {
	if cfg.Query == "" {
		return nil, errors.New("snowflake source: query not configured")
	}

	// DSN format: user:password@account/database/schema?warehouse=xxx
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s",
		cfg.User, cfg.Password, cfg.Account, cfg.Database, cfg.Schema)
	if cfg.Warehouse != "" {
		dsn += "?warehouse=" + cfg.Warehouse
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snowflake connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &SnowflakeSource{cfg: cfg, db: db}, nil
}

// Open executes the configured query and captures the result schema.
func (s *SnowflakeSource) Open(ctx context.Context) ([]Table, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping snowflake: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.cfg.Query)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}

	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	s.rows = rows
	s.columns = columns
	return []Table{{Name: "snowflake", Columns: columns}}, nil
}

// Stream implements RowSource.Stream for the open result set.
func (s *SnowflakeSource) Stream(ctx context.Context) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		if s.rows == nil {
			errCh <- errors.New("snowflake source: Stream called before Open")
			return
		}
		defer s.rows.Close()

		log := logging.Component("source:snowflake")

		values := make([]any, len(s.columns))
		scanArgs := make([]any, len(s.columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}

		count := 0
		for s.rows.Next() {
			if err := s.rows.Scan(scanArgs...); err != nil {
				errCh <- fmt.Errorf("scan row: %w", err)
				return
			}

			row := make(Row, len(s.columns))
			for i, col := range s.columns {
				if b, ok := values[i].([]byte); ok {
					row[col] = string(b)
				} else {
					row[col] = values[i]
				}
			}

			select {
			case rowCh <- row:
				count++
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if err := s.rows.Err(); err != nil {
			errCh <- fmt.Errorf("iterate result set: %w", err)
			return
		}

		log.Info("query streamed", "rows", count)
	}()

	return rowCh, errCh
}

// Close releases the result set and the connection pool.
func (s *SnowflakeSource) Close() error {
	if s.rows != nil {
		s.rows.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
