// Package config provides configuration for the OHLCV exporter. Values are
// assembled from defaults, an optional .env file, and environment variables;
// command-line flags applied by the caller take final precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig represents the complete exporter configuration.
type AppConfig struct {
	// Symbols are the trading symbols to export, e.g. BTCUSDT.
	Symbols []string `env:"SYMBOLS"`

	// Intervals are the kline intervals to export per symbol.
	Intervals []string `env:"INTERVALS"`

	// Days is the look-back window applied when Start/End are not given.
	Days int `env:"DAYS"`

	// Start and End are optional explicit UTC bounds, YYYY-MM-DD or
	// YYYY-MM-DDTHH:MM:SS.
	Start string `env:"START"`
	End   string `env:"END"`

	// OutDir is the root directory for exported CSV files.
	OutDir string `env:"OUT_DIR"`

	// HTTPTimeout bounds each upstream request.
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT"`

	// RetryAttempts is the shared retry budget for transient failures.
	RetryAttempts int `env:"RETRY_ATTEMPTS"`

	// WorkerCount sizes the export worker pool. 1 means sequential.
	WorkerCount int `env:"WORKER_COUNT"`

	// Logging configures structured log output.
	Logging LoggingConfig
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `env:"LOG_LEVEL"`  // debug, info, warn, error
	Format   string `env:"LOG_FORMAT"` // json, text
	Output   string `env:"LOG_OUTPUT"` // stdout, stderr, file
	FilePath string `env:"LOG_FILE_PATH"`

	// Rotation settings, used only when Output is "file".
	MaxSizeMB  int  `env:"LOG_MAX_SIZE"`
	MaxBackups int  `env:"LOG_MAX_BACKUPS"`
	MaxAgeDays int  `env:"LOG_MAX_AGE"`
	Compress   bool `env:"LOG_COMPRESS"`
}

// Default returns a configuration with the exporter's defaults: a 180-day
// window of 1h and 4h klines written under ./out.
func Default() *AppConfig {
	return &AppConfig{
		Intervals:     []string{"1h", "4h"},
		Days:          180,
		OutDir:        "out",
		HTTPTimeout:   20 * time.Second,
		RetryAttempts: 3,
		WorkerCount:   1,
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load builds a configuration from defaults, an optional .env file in the
// working directory, and environment variables.
func Load() *AppConfig {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfg := Default()
	cfg.applyEnv()
	return cfg
}

func (c *AppConfig) applyEnv() {
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = SplitList(v)
	}
	if v := os.Getenv("INTERVALS"); v != "" {
		c.Intervals = SplitList(v)
	}
	if v := os.Getenv("DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Days = n
		}
	}
	if v := os.Getenv("START"); v != "" {
		c.Start = v
	}
	if v := os.Getenv("END"); v != "" {
		c.End = v
	}
	if v := os.Getenv("OUT_DIR"); v != "" {
		c.OutDir = v
	}
	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTPTimeout = d
		}
	}
	if v := os.Getenv("RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RetryAttempts = n
		}
	}
	if v := os.Getenv("WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.WorkerCount = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("LOG_OUTPUT"); v != "" {
		c.Logging.Output = v
	}
	if v := os.Getenv("LOG_FILE_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// Validate checks the configuration for completeness and consistency.
func (c *AppConfig) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: at least one symbol is required")
	}
	for _, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("config: empty symbol in list")
		}
	}
	if len(c.Intervals) == 0 {
		return fmt.Errorf("config: at least one interval is required")
	}
	if c.Days <= 0 && c.Start == "" {
		return fmt.Errorf("config: days must be positive when no explicit start is given")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: http timeout must be positive")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("config: retry attempts must be at least 1")
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("config: worker count must be at least 1")
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		return fmt.Errorf("config: log file path is required when log output is file")
	}
	return nil
}

// SplitList parses a comma-separated list, trimming whitespace and dropping
// empty entries.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
