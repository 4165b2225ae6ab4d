// Package config loads and validates the uploader configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shopwatch/feed-uploader/internal/feed"
	"github.com/shopwatch/feed-uploader/internal/logging"
	"github.com/shopwatch/feed-uploader/internal/metrics"
	"github.com/shopwatch/feed-uploader/internal/shops"
	"github.com/shopwatch/feed-uploader/internal/source"
	"github.com/shopwatch/feed-uploader/internal/storage"
)

// Config is the full configuration surface of a run.
type Config struct {
	Format         string            `yaml:"format"` // "pricehistory" | "metadata"
	AWSBucket      string            `yaml:"aws_bucket"`
	AWSDirectory   string            `yaml:"aws_directory"` // optional key prefix
	Workers        int               `yaml:"workers"`
	Chunksize      int               `yaml:"chunksize"`
	FieldDatatypes map[string]string `yaml:"field_datatypes"` // metadata mode only
	ExcludeColumns []string          `yaml:"exclude_columns"` // metadata mode only

	Source  source.Config  `yaml:"source"`
	Shops   shops.Config   `yaml:"shops"`
	Storage storage.Config `yaml:"storage"`
	Retry   RetryConfig    `yaml:"retry"`
	Report  ReportConfig   `yaml:"report"`
	Logging logging.Config `yaml:"logging"`
	Metrics metrics.Config `yaml:"metrics"`
}

// RetryConfig bounds per-document upload retries.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BackoffMs   int `yaml:"backoff_ms"`
}

// ReportConfig controls where the run report artifacts are written.
type ReportConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the configuration defaults applied before the file is
// decoded, so absent keys keep their defaults and explicit zeros fail
// validation.
func Default() Config {
	return Config{
		Workers:   1,
		Chunksize: 100,
		Retry: RetryConfig{
			MaxAttempts: 3,
			BackoffMs:   500,
		},
		Storage: storage.Config{Backend: "s3"},
		Report:  ReportConfig{Dir: "out"},
		Logging: logging.Config{Format: "text", Level: "info"},
	}
}

// Load reads and decodes the YAML configuration file, applies environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides credentials-adjacent values from the environment, so
// they never need to live in the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("AWS_BUCKET"); v != "" {
		c.AWSBucket = v
	}
	if v := os.Getenv("SHOPS_POSTGRES_DSN"); v != "" {
		c.Shops.PostgresDSN = v
	}
	if v := os.Getenv("SNOWFLAKE_PASSWORD"); v != "" {
		c.Source.Snowflake.Password = v
	}
}

// Validate performs every configuration check before any row is read.
// All problems are reported at once.
func (c *Config) Validate() error {
	var errs []error

	format, err := feed.ParseFormat(c.Format)
	if err != nil {
		errs = append(errs, err)
	}

	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", c.Workers))
	}
	if c.Chunksize < 1 {
		errs = append(errs, fmt.Errorf("chunksize must be >= 1, got %d", c.Chunksize))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts))
	}

	if _, err := feed.ParseFieldTypes(c.FieldDatatypes); err != nil {
		errs = append(errs, err)
	}
	if format == feed.FormatPriceHistory && len(c.FieldDatatypes) > 0 {
		errs = append(errs, errors.New("field_datatypes is only valid for format metadata"))
	}

	if c.Storage.Backend != "local" && c.AWSBucket == "" {
		errs = append(errs, errors.New("aws_bucket is required"))
	}
	if c.Storage.Backend == "local" && c.Storage.LocalDir == "" {
		errs = append(errs, errors.New("storage.local_dir is required for the local backend"))
	}

	return errors.Join(errs...)
}
