// Package config loads probe configuration from environment variables and
// scenario files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all renter-probe configuration.
type Config struct {
	// Renter API
	RenterAddr     string
	RequestTimeout time.Duration
	WaitReady      time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Scenario
	ScenarioFile string
	FilesDir     string
	Suite        string
	Seed         int64
	ShareWith    string

	// Metrics export (both optional)
	MetricsTextfile string
	MetricsPushURL  string

	// Report archive in S3 (optional, enabled when ReportBucket is set)
	ReportEndpoint  string
	ReportBucket    string
	ReportPrefix    string
	ReportAccessKey string
	ReportSecretKey string
	ReportRegion    string

	// Run history in PostgreSQL (optional)
	ResultsDatabaseURL string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		RenterAddr:         envOr("RENTER_ADDR", "http://127.0.0.1:8002"),
		RequestTimeout:     envDuration("REQUEST_TIMEOUT", 0), // 0 = no client timeout
		WaitReady:          envDuration("WAIT_READY", 0),
		LogLevel:           envOr("LOG_LEVEL", "info"),
		LogFormat:          envOr("LOG_FORMAT", "console"),
		ScenarioFile:       envOr("SCENARIO_FILE", ""),
		FilesDir:           envOr("FILES_DIR", "files"),
		Suite:              envOr("PROBE_SUITE", SuiteMultiUpload),
		Seed:               envInt64("PROBE_SEED", 0), // 0 = time-based
		ShareWith:          envOr("PROBE_SHARE_WITH", ""),
		MetricsTextfile:    envOr("METRICS_TEXTFILE", ""),
		MetricsPushURL:     envOr("METRICS_PUSH_URL", ""),
		ReportEndpoint:     envOr("REPORT_S3_ENDPOINT", ""),
		ReportBucket:       envOr("REPORT_S3_BUCKET", ""),
		ReportPrefix:       envOr("REPORT_S3_PREFIX", "renter-probe/"),
		ReportAccessKey:    envOr("REPORT_S3_ACCESS_KEY", ""),
		ReportSecretKey:    envOr("REPORT_S3_SECRET_KEY", ""),
		ReportRegion:       envOr("REPORT_S3_REGION", "us-east-1"),
		ResultsDatabaseURL: envOr("RESULTS_DATABASE_URL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that do not depend on the scenario.
func (c *Config) Validate() error {
	if c.RenterAddr == "" {
		return fmt.Errorf("RENTER_ADDR is required")
	}
	if !validSuite(c.Suite) {
		return fmt.Errorf("unknown suite %q", c.Suite)
	}
	if c.RequestTimeout < 0 || c.WaitReady < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
