// Package config handles loading and validating configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"perp-crowd-scanner/internal/binance"
	"perp-crowd-scanner/internal/reporting"
	"perp-crowd-scanner/internal/risk"
	"perp-crowd-scanner/internal/scanner"
	"perp-crowd-scanner/internal/storage/backend"
)

// Storage backends.
const (
	StorageMemory     = backend.Memory
	StoragePostgres   = backend.Postgres
	StorageClickhouse = backend.Clickhouse
)

// Catalogue sources for the symbol universe.
const (
	CatalogREST = "rest"
	CatalogSDK  = "sdk"
)

// Config holds all configuration values for the scan and risk passes.
type Config struct {
	// Upstream
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Retry          binance.RetryPolicy
	CatalogSource  string

	// Scan parameters
	Period              string
	MinOpenInterestUSDT float64
	Thresholds          scanner.Thresholds

	// Scheduling
	Concurrency   int
	PaceDelay     time.Duration
	ProgressEvery int
	RunTimeout    time.Duration

	// Sink
	SinkQueueSize     int
	SinkWriteAttempts int

	// Storage
	StorageBackend string
	PostgresDSN    string
	ClickhouseDSN  string

	// Reporting
	ScanCSVPath             string
	FundingConfirmThreshold float64

	// Risk pass
	RiskMinOpenInterestUSDT float64
	RiskPace                time.Duration
	RiskCSVPath             string
	GradesJSONPath          string

	// Metrics, empty disables the HTTP endpoint
	MetricsAddr string
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > hardcoded defaults
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	th := scanner.DefaultThresholds()
	retry := binance.DefaultRetryPolicy()

	cfg := &Config{
		BaseURL:        getEnv("BINANCE_BASE_URL", binance.DefaultBaseURL),
		ConnectTimeout: getEnvMillis("CONNECT_TIMEOUT_MS", binance.DefaultConnectTimeout),
		ReadTimeout:    getEnvMillis("READ_TIMEOUT_MS", binance.DefaultReadTimeout),
		Retry: binance.RetryPolicy{
			MaxAttempts:     getEnvInt("RETRY_MAX_ATTEMPTS", retry.MaxAttempts),
			BaseDelay:       getEnvMillis("RETRY_BASE_DELAY_MS", retry.BaseDelay),
			MaxDelay:        getEnvMillis("RETRY_MAX_DELAY_MS", retry.MaxDelay),
			Multiplier:      retry.Multiplier,
			RetryableStatus: retry.RetryableStatus,
		},
		CatalogSource: getEnv("CATALOG_SOURCE", CatalogREST),

		Period:              getEnv("SCAN_PERIOD", "5m"),
		MinOpenInterestUSDT: getEnvFloat("MIN_OI_USDT", 2_500_000),
		Thresholds: scanner.Thresholds{
			TopAccountShortMin:    getEnvFloat("TOP_ACC_SHORT_MIN", th.TopAccountShortMin),
			GlobalAccountShortMin: getEnvFloat("GLOBAL_ACC_SHORT_MIN", th.GlobalAccountShortMin),
			TopPositionLongMin:    getEnvFloat("TOP_POS_LONG_MIN", th.TopPositionLongMin),
			TopAccountLongMin:     getEnvFloat("TOP_ACC_LONG_MIN", th.TopAccountLongMin),
			GlobalAccountLongMin:  getEnvFloat("GLOBAL_ACC_LONG_MIN", th.GlobalAccountLongMin),
			TopPositionShortMin:   getEnvFloat("TOP_POS_SHORT_MIN", th.TopPositionShortMin),
		},

		Concurrency:   getEnvInt("SCAN_CONCURRENCY", scanner.DefaultConcurrency),
		PaceDelay:     getEnvMillis("PACE_DELAY_MS", scanner.DefaultPaceDelay),
		ProgressEvery: getEnvInt("PROGRESS_EVERY", scanner.DefaultProgressEvery),
		RunTimeout:    time.Duration(getEnvInt("RUN_TIMEOUT_SECONDS", 0)) * time.Second,

		SinkQueueSize:     getEnvInt("SINK_QUEUE_SIZE", scanner.DefaultQueueSize),
		SinkWriteAttempts: getEnvInt("SINK_WRITE_ATTEMPTS", scanner.DefaultWriteAttempts),

		StorageBackend: getEnv("STORAGE_BACKEND", StorageMemory),
		PostgresDSN:    getEnv("POSTGRES_DSN", ""),
		ClickhouseDSN:  getEnv("CLICKHOUSE_DSN", ""),

		ScanCSVPath:             getEnv("SCAN_CSV_PATH", "scan_results.csv"),
		FundingConfirmThreshold: getEnvFloat("FUNDING_CONFIRM_THRESHOLD", reporting.DefaultFundingConfirmThreshold),

		RiskMinOpenInterestUSDT: getEnvFloat("RISK_MIN_OI_USDT", risk.DefaultMinOpenInterestUSDT),
		RiskPace:                getEnvMillis("RISK_PACE_MS", risk.DefaultPace),
		RiskCSVPath:             getEnv("RISK_CSV_PATH", "scan_risk_analysis.csv"),
		GradesJSONPath:          getEnv("GRADES_JSON_PATH", "scan_grades.json"),

		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("BINANCE_BASE_URL is required")
	}

	if c.Period == "" {
		return fmt.Errorf("SCAN_PERIOD is required")
	}

	if c.MinOpenInterestUSDT < 0 {
		return fmt.Errorf("MIN_OI_USDT must not be negative")
	}

	if err := c.Thresholds.Validate(); err != nil {
		return err
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("SCAN_CONCURRENCY must be at least 1")
	}

	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 {
		return fmt.Errorf("CONNECT_TIMEOUT_MS and READ_TIMEOUT_MS must be positive")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}

	if c.SinkQueueSize < 1 {
		return fmt.Errorf("SINK_QUEUE_SIZE must be at least 1")
	}

	if c.SinkWriteAttempts < 1 {
		return fmt.Errorf("SINK_WRITE_ATTEMPTS must be at least 1")
	}

	if c.RunTimeout < 0 {
		return fmt.Errorf("RUN_TIMEOUT_SECONDS must not be negative")
	}

	switch c.CatalogSource {
	case CatalogREST, CatalogSDK:
	default:
		return fmt.Errorf("CATALOG_SOURCE must be %q or %q, got %q", CatalogREST, CatalogSDK, c.CatalogSource)
	}

	return c.ValidateStorage()
}

// ValidateStorage checks the storage backend and its DSN. Entry points call
// it again after flags override the backend.
func (c *Config) ValidateStorage() error {
	switch c.StorageBackend {
	case StorageMemory:
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres backend")
		}
	case StorageClickhouse:
		if c.ClickhouseDSN == "" {
			return fmt.Errorf("CLICKHOUSE_DSN is required for the clickhouse backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvMillis retrieves a millisecond count as a duration or returns a default.
func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
