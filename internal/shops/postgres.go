package shops

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultQuery = `SELECT domain FROM shops WHERE shop_id = $1`

// PostgresResolver looks up shop domains in a Postgres table.
// Lookups are cached for the lifetime of the resolver; the shop table
// changes rarely and a run should see one consistent view of it anyway.
type PostgresResolver struct {
	pool  *pgxpool.Pool
	query string

	mu    sync.RWMutex
	cache map[string]string
}

// NewPostgresResolver connects to Postgres and verifies the connection.
func NewPostgresResolver(ctx context.Context, cfg Config) (*PostgresResolver, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	query := cfg.Query
	if query == "" {
		query = defaultQuery
	}

	return &PostgresResolver{
		pool:  pool,
		query: query,
		cache: make(map[string]string),
	}, nil
}

// DomainFor implements Resolver.
func (r *PostgresResolver) DomainFor(ctx context.Context, shopID string) (string, error) {
	r.mu.RLock()
	domain, ok := r.cache[shopID]
	r.mu.RUnlock()
	if ok {
		return domain, nil
	}

	err := r.pool.QueryRow(ctx, r.query, shopID).Scan(&domain)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: shop_id=%s", ErrNotFound, shopID)
	}
	if err != nil {
		return "", fmt.Errorf("query shop domain: %w", err)
	}

	r.mu.Lock()
	r.cache[shopID] = domain
	r.mu.Unlock()

	return domain, nil
}

// Close releases the connection pool.
func (r *PostgresResolver) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}
