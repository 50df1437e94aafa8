// Binance OHLCV exporter CLI.
// Fetches historical spot klines for a set of symbols from the public
// Binance market-data endpoint, writes one CSV per symbol and interval, and
// derives per-symbol summary metrics from the hourly series.
//
// Usage:
//
//	ohlcv-export -symbols BTCUSDT,ETHUSDT
//	ohlcv-export -symbols BTCUSDT -intervals 1h,4h -days 90 -out data
//	ohlcv-export -symbols BTCUSDT -start 2024-01-01 -end 2024-06-30T12:00:00
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/johnayoung/go-binance-ohlcv-export/internal/config"
	apperrors "github.com/johnayoung/go-binance-ohlcv-export/internal/errors"
	"github.com/johnayoung/go-binance-ohlcv-export/internal/exchange"
	"github.com/johnayoung/go-binance-ohlcv-export/internal/export"
	"github.com/johnayoung/go-binance-ohlcv-export/internal/logger"
	"github.com/johnayoung/go-binance-ohlcv-export/internal/storage"
	"github.com/johnayoung/go-binance-ohlcv-export/internal/timerange"
)

const (
	appName = "ohlcv-export"
	version = "1.0.0"
)

// Exit codes following standard conventions.
const (
	ExitSuccess     = 0
	ExitUsageError  = 1
	ExitConfigError = 2
	ExitDataError   = 4
	ExitInterrupt   = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	var (
		symbols     = flag.String("symbols", "", "Comma-separated trading symbols, e.g. BTCUSDT,ETHUSDT (required)")
		intervals   = flag.String("intervals", "", "Comma-separated kline intervals (default 1h,4h)")
		days        = flag.Int("days", cfg.Days, "Look-back window in days when -start/-end are not given")
		start       = flag.String("start", cfg.Start, "Start UTC: YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS")
		end         = flag.String("end", cfg.End, "End UTC: YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS")
		outDir      = flag.String("out", cfg.OutDir, "Output directory for CSV files")
		timeout     = flag.Duration("timeout", cfg.HTTPTimeout, "HTTP request timeout")
		retries     = flag.Int("retries", cfg.RetryAttempts, "Retry budget for transient failures")
		workers     = flag.Int("workers", cfg.WorkerCount, "Worker pool size (1 = sequential)")
		logLevel    = flag.String("log-level", cfg.Logging.Level, "Log level: debug, info, warn, error")
		logFormat   = flag.String("log-format", cfg.Logging.Format, "Log format: text, json")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", appName, version)
		return ExitSuccess
	}

	if *symbols != "" {
		cfg.Symbols = config.SplitList(*symbols)
	}
	if *intervals != "" {
		cfg.Intervals = config.SplitList(*intervals)
	}
	cfg.Days = *days
	cfg.Start = *start
	cfg.End = *end
	cfg.OutDir = *outDir
	cfg.HTTPTimeout = *timeout
	cfg.RetryAttempts = *retries
	cfg.WorkerCount = *workers
	cfg.Logging.Level = *logLevel
	cfg.Logging.Format = *logFormat

	if len(cfg.Symbols) == 0 {
		fmt.Fprintf(os.Stderr, "Error: -symbols is required\n\n")
		flag.Usage()
		return ExitUsageError
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	log, closer, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}
	defer closer.Close()

	// The time range is resolved once, before any network activity; a
	// malformed date aborts the run here.
	tr, err := timerange.Resolve(cfg.Days, cfg.Start, cfg.End)
	if err != nil {
		log.Error("invalid time range", "error", err, "kind", apperrors.Kind(err))
		return ExitConfigError
	}

	adapter := exchange.NewBinanceAdapterWithConfig(exchange.AdapterConfig{
		Timeout:       cfg.HTTPTimeout,
		RetryAttempts: cfg.RetryAttempts,
		Logger:        logger.WithComponent(log, "exchange"),
	})
	store := storage.NewCSVStore(logger.WithComponent(log, "storage"))

	runner, err := export.NewRunner(export.Config{
		Symbols:     cfg.Symbols,
		Intervals:   cfg.Intervals,
		Range:       tr,
		OutDir:      cfg.OutDir,
		WorkerCount: cfg.WorkerCount,
		Fetcher:     adapter,
		Store:       store,
		Logger:      logger.WithComponent(log, "export"),
	})
	if err != nil {
		log.Error("failed to initialize export", "error", err)
		return ExitConfigError
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runner.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("export interrupted")
			return ExitInterrupt
		}
		log.Error("export failed", "error", err, "kind", apperrors.Kind(err))
		return ExitDataError
	}

	return ExitSuccess
}
