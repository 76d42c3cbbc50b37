// Package config provides layered configuration for the background
// computation worker: defaults in code, an optional YAML file, and an
// environment-variable overlay on top.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Environment is the deployment environment the worker runs in.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the root configuration for the worker.
type Config struct {
	Environment Environment `yaml:"environment"`

	Logging   Logging   `yaml:"logging"`
	Server    Server    `yaml:"server"`
	Database  Database  `yaml:"database"`
	Cache     Cache     `yaml:"cache"`
	Scheduler Scheduler `yaml:"scheduler"`
	Query     Query     `yaml:"query"`
	Metrics   Metrics   `yaml:"metrics"`

	// LoadedFrom records which sources contributed to this configuration.
	LoadedFrom []string `yaml:"-"`
}

// Logging configures the zap logger.
type Logging struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Server configures the ops HTTP surface of the worker.
type Server struct {
	Port            int           `yaml:"port" validate:"gt=0,lte=65535"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Database configures the analytics document store.
type Database struct {
	TableName string        `yaml:"table_name" validate:"required"`
	Region    string        `yaml:"region" validate:"required"`
	Endpoint  string        `yaml:"endpoint"` // local/dev override, empty in AWS
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Cache configures the two-tier cache store.
type Cache struct {
	FastTTL         time.Duration `yaml:"fast_ttl" validate:"gt=0"`
	SlowTTL         time.Duration `yaml:"slow_ttl" validate:"gt=0"`
	FastMaxItems    int           `yaml:"fast_max_items" validate:"gt=0"`
	SlowMaxItems    int           `yaml:"slow_max_items" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"gt=0"`
}

// Scheduler configures the in-process job scheduler.
type Scheduler struct {
	MaxConcurrent      int           `yaml:"max_concurrent" validate:"gt=0"`
	PollInterval       time.Duration `yaml:"poll_interval" validate:"gt=0"`
	QueueCapacity      int           `yaml:"queue_capacity" validate:"gt=0"`
	BaseRetryDelay     time.Duration `yaml:"base_retry_delay" validate:"gt=0"`
	DefaultMaxAttempts int           `yaml:"default_max_attempts" validate:"gt=0"`
	DefaultTimeout     time.Duration `yaml:"default_timeout" validate:"gt=0"`
	HistoryLimit       int           `yaml:"history_limit" validate:"gt=0"`
	CleanupInterval    time.Duration `yaml:"cleanup_interval" validate:"gt=0"`
	CleanupRetention   time.Duration `yaml:"cleanup_retention" validate:"gt=0"`
}

// Query configures the query optimizer.
type Query struct {
	SlowThreshold time.Duration `yaml:"slow_threshold" validate:"gt=0"`
}

// Metrics configures the prometheus collector.
type Metrics struct {
	Namespace string `yaml:"namespace" validate:"required"`
}

// Default returns a configuration with sensible defaults so the worker can
// run without any configuration file.
func Default() *Config {
	return &Config{
		Environment: Development,
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Server: Server{
			Port:            8081,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{
			TableName: "cryptique-analytics-dev",
			Region:    "us-east-1",
			Timeout:   10 * time.Second,
		},
		Cache: Cache{
			FastTTL:         5 * time.Minute,
			SlowTTL:         1 * time.Hour,
			FastMaxItems:    1000,
			SlowMaxItems:    5000,
			CleanupInterval: 1 * time.Minute,
		},
		Scheduler: Scheduler{
			MaxConcurrent:      3,
			PollInterval:       1 * time.Second,
			QueueCapacity:      1000,
			BaseRetryDelay:     5 * time.Second,
			DefaultMaxAttempts: 3,
			DefaultTimeout:     2 * time.Minute,
			HistoryLimit:       500,
			CleanupInterval:    1 * time.Hour,
			CleanupRetention:   24 * time.Hour,
		},
		Query: Query{
			SlowThreshold: 1 * time.Second,
		},
		Metrics: Metrics{
			Namespace: "cryptique",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Environment {
	case Development, Staging, Production:
	default:
		return fmt.Errorf("invalid environment %q", c.Environment)
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// getEnvironment resolves the deployment environment from the process
// environment, defaulting to development.
func getEnvironment() Environment {
	switch strings.ToLower(os.Getenv("ENVIRONMENT")) {
	case "production", "prod":
		return Production
	case "staging":
		return Staging
	default:
		return Development
	}
}
