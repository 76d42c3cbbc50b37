package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the worker configuration from its sources, lowest to highest
// priority:
//  1. defaults in code
//  2. YAML file named by CONFIG_FILE (optional)
//  3. environment variables
func Load() (*Config, error) {
	cfg := Default()
	cfg.Environment = getEnvironment()
	cfg.LoadedFrom = append(cfg.LoadedFrom, "defaults")

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		cfg.LoadedFrom = append(cfg.LoadedFrom, path)
	}

	loadEnvironmentVariables(cfg)
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error. Use only in main().
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// loadEnvironmentVariables overlays environment variables on the
// configuration. This is the highest priority source.
func loadEnvironmentVariables(cfg *Config) {
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}

	if val := os.Getenv("SERVER_PORT"); val != "" {
		if port := parseInt(val); port > 0 {
			cfg.Server.Port = port
		}
	}
	if val := os.Getenv("SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}

	if val := os.Getenv("TABLE_NAME"); val != "" {
		cfg.Database.TableName = val
	}
	if val := os.Getenv("AWS_REGION"); val != "" {
		cfg.Database.Region = val
	}
	if val := os.Getenv("DYNAMODB_ENDPOINT"); val != "" {
		cfg.Database.Endpoint = val
	}

	if val := os.Getenv("CACHE_FAST_TTL"); val != "" {
		if d := parseDuration(val); d > 0 {
			cfg.Cache.FastTTL = d
		}
	}
	if val := os.Getenv("CACHE_SLOW_TTL"); val != "" {
		if d := parseDuration(val); d > 0 {
			cfg.Cache.SlowTTL = d
		}
	}

	if val := os.Getenv("SCHEDULER_MAX_CONCURRENT"); val != "" {
		if n := parseInt(val); n > 0 {
			cfg.Scheduler.MaxConcurrent = n
		}
	}
	if val := os.Getenv("SCHEDULER_QUEUE_CAPACITY"); val != "" {
		if n := parseInt(val); n > 0 {
			cfg.Scheduler.QueueCapacity = n
		}
	}
	if val := os.Getenv("SCHEDULER_BASE_RETRY_DELAY"); val != "" {
		if d := parseDuration(val); d > 0 {
			cfg.Scheduler.BaseRetryDelay = d
		}
	}

	if val := os.Getenv("QUERY_SLOW_THRESHOLD"); val != "" {
		if d := parseDuration(val); d > 0 {
			cfg.Query.SlowThreshold = d
		}
	}
}

func parseInt(s string) int {
	val, _ := strconv.Atoi(s)
	return val
}

func parseDuration(s string) time.Duration {
	val, _ := time.ParseDuration(s)
	return val
}
