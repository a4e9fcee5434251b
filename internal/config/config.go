// Package config loads application and job configuration from the
// environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"wealthsync/internal/validator"
)

// Config holds application configuration
type Config struct {
	Env string

	// Server
	Port        string
	MetricsPort string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Auth
	JWTSecret      string
	PipelineAPIKey string

	// Upstream providers
	QuoteAPIURL        string
	QuoteRatePerSecond float64
	FundPriceURL       string
	ConnectionAPIURL   string
	ConnectionAPIKey   string
	ProviderTimeout    time.Duration

	Jobs Jobs
}

// Jobs is the configuration handed to each job invocation. It is a value:
// jobs never observe configuration changes mid-run.
type Jobs struct {
	ExcludedSymbols        []string        `validate:"dive,required"`
	ExcludedSymbolPatterns []string        `validate:"dive,required,regexp"`
	QuoteBatchSize         int             `validate:"min=1,max=500"`
	QuoteConcurrency       int             `validate:"min=1,max=16"`
	RetryAttempts          int             `validate:"min=0,max=10"`
	RetryBackoff           []time.Duration `validate:"dive,min=0"`

	NetWorthSnapshotCron string `validate:"required,cron"`
	HoldingPriceCron     string `validate:"required,cron"`
	ConnectionSyncCron   string `validate:"required,cron"`
	FundPriceCron        string `validate:"required,cron"`
}

// Validate checks the job configuration.
func (j Jobs) Validate() error {
	if err := validator.New().Struct(j); err != nil {
		return fmt.Errorf("invalid job configuration: %w", err)
	}
	return nil
}

// Load loads configuration from .env (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Port:        getEnv("PORT", "8080"),
		MetricsPort: getEnv("METRICS_PORT", "9090"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "wealthsync"),
		DBPassword: getEnv("DB_PASSWORD", "wealthsync"),
		DBName:     getEnv("DB_NAME", "wealthsync"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:      getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		PipelineAPIKey: getEnv("PIPELINE_API_KEY", ""),

		QuoteAPIURL:      getEnv("QUOTE_API_URL", "https://query1.finance.yahoo.com/v7/finance/quote"),
		FundPriceURL:     getEnv("FUND_PRICE_URL", "https://www.tsp.gov/data/fund-price-history.csv"),
		ConnectionAPIURL: getEnv("CONNECTION_API_URL", "http://localhost:8081"),
		ConnectionAPIKey: getEnv("CONNECTION_API_KEY", ""),
	}

	var err error
	if cfg.QuoteRatePerSecond, err = strconv.ParseFloat(getEnv("QUOTE_RATE_PER_SECOND", "2"), 64); err != nil {
		return nil, fmt.Errorf("invalid QUOTE_RATE_PER_SECOND: %w", err)
	}
	if cfg.ProviderTimeout, err = time.ParseDuration(getEnv("PROVIDER_TIMEOUT", "30s")); err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_TIMEOUT: %w", err)
	}

	jobs, err := loadJobs()
	if err != nil {
		return nil, err
	}
	cfg.Jobs = jobs

	return cfg, nil
}

// DefaultJobs returns the job configuration used when nothing is overridden.
func DefaultJobs() Jobs {
	return Jobs{
		QuoteBatchSize:   100,
		QuoteConcurrency: 1,
		RetryAttempts:    2,
		RetryBackoff:     []time.Duration{60 * time.Second, 300 * time.Second},

		FundPriceCron:        "0 21 * * 1-5",
		HoldingPriceCron:     "30 21 * * 1-5",
		ConnectionSyncCron:   "0 */6 * * *",
		NetWorthSnapshotCron: "30 23 * * *",
	}
}

func loadJobs() (Jobs, error) {
	jobs := DefaultJobs()

	jobs.ExcludedSymbols = splitList(getEnv("EXCLUDED_SYMBOLS", ""), ",")
	// Patterns are ';'-separated so they may contain commas ("^X{1,3}$").
	jobs.ExcludedSymbolPatterns = splitList(getEnv("EXCLUDED_SYMBOL_PATTERNS", ""), ";")

	var err error
	if jobs.QuoteBatchSize, err = getEnvInt("QUOTE_BATCH_SIZE", jobs.QuoteBatchSize); err != nil {
		return Jobs{}, err
	}
	if jobs.QuoteConcurrency, err = getEnvInt("QUOTE_CONCURRENCY", jobs.QuoteConcurrency); err != nil {
		return Jobs{}, err
	}
	if jobs.RetryAttempts, err = getEnvInt("JOB_RETRY_ATTEMPTS", jobs.RetryAttempts); err != nil {
		return Jobs{}, err
	}
	if raw := getEnv("JOB_RETRY_BACKOFF", ""); raw != "" {
		backoff, err := parseDurations(raw)
		if err != nil {
			return Jobs{}, fmt.Errorf("invalid JOB_RETRY_BACKOFF: %w", err)
		}
		jobs.RetryBackoff = backoff
	}

	jobs.NetWorthSnapshotCron = getEnv("NETWORTH_SNAPSHOT_CRON", jobs.NetWorthSnapshotCron)
	jobs.HoldingPriceCron = getEnv("HOLDING_PRICE_CRON", jobs.HoldingPriceCron)
	jobs.ConnectionSyncCron = getEnv("CONNECTION_SYNC_CRON", jobs.ConnectionSyncCron)
	jobs.FundPriceCron = getEnv("FUND_PRICE_CRON", jobs.FundPriceCron)

	if err := jobs.Validate(); err != nil {
		return Jobs{}, err
	}
	return jobs, nil
}

// splitList splits raw on sep, trimming entries and dropping blanks.
func splitList(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDurations(raw string) ([]time.Duration, error) {
	parts := splitList(raw, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := time.ParseDuration(p)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
