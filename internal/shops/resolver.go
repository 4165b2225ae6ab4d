// Package shops resolves shop IDs to the shop domains used in object keys.
package shops

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no domain mapping exists for a shop ID.
var ErrNotFound = errors.New("no domain mapping for shop")

// Resolver maps a shop ID to its public shop domain.
type Resolver interface {
	DomainFor(ctx context.Context, shopID string) (string, error)
	Close() error
}

// Config configures the shop-domain resolver.
type Config struct {
	Mode string `yaml:"mode"` // "static" | "postgres"

	// Static table file
	Path string `yaml:"path"`

	// Postgres
	PostgresDSN string `yaml:"postgres_dsn"`
	Query       string `yaml:"query"`
}

var ErrInvalidResolverMode = errors.New("invalid shops resolver mode")

// NewResolver constructs a resolver based on the configured mode.
func NewResolver(ctx context.Context, cfg Config) (Resolver, error) {
	switch cfg.Mode {
	case "static", "":
		return NewStaticResolver(cfg.Path)
	case "postgres":
		return NewPostgresResolver(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidResolverMode, cfg.Mode)
	}
}

// StaticResolver serves domains from an in-memory table.
type StaticResolver struct {
	domains map[string]string
}

// NewStaticResolver loads a shop_id -> domain table from a YAML file.
func NewStaticResolver(path string) (*StaticResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shop table %s: %w", path, err)
	}

	domains := map[string]string{}
	if err := yaml.Unmarshal(data, &domains); err != nil {
		return nil, fmt.Errorf("parse shop table %s: %w", path, err)
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("shop table %s is empty", path)
	}

	return &StaticResolver{domains: domains}, nil
}

// NewStaticResolverFromMap builds a resolver from an existing table.
func NewStaticResolverFromMap(domains map[string]string) *StaticResolver {
	return &StaticResolver{domains: domains}
}

// DomainFor implements Resolver.
func (r *StaticResolver) DomainFor(_ context.Context, shopID string) (string, error) {
	domain, ok := r.domains[shopID]
	if !ok {
		return "", fmt.Errorf("%w: shop_id=%s", ErrNotFound, shopID)
	}
	return domain, nil
}

// Close implements Resolver.
func (r *StaticResolver) Close() error { return nil }
