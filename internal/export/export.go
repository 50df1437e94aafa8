// Package export orchestrates a full export run: it walks the requested
// symbol/interval pairs, drives the kline fetcher for each, writes the
// per-pair CSV files, and accumulates summary metrics from each symbol's
// hourly series into a single table written once at the end.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/johnayoung/go-binance-ohlcv-export/internal/exchange"
	"github.com/johnayoung/go-binance-ohlcv-export/internal/models"
	"github.com/johnayoung/go-binance-ohlcv-export/internal/summary"
	"github.com/johnayoung/go-binance-ohlcv-export/internal/timerange"
)

// summaryInterval is the interval whose series feeds the metrics table.
// Hourly buckets keep the daily volume sums exact.
const summaryInterval = "1h"

// KlineWriter is the subset of the storage layer the runner needs.
type KlineWriter interface {
	WriteKlines(path string, klines []models.Kline) error
	WriteSummary(path string, rows []summary.Row) error
}

// Config configures an export run.
type Config struct {
	Symbols   []string
	Intervals []string
	Range     timerange.Range
	OutDir    string

	// WorkerCount sizes the pool processing (symbol, interval) pairs.
	// 1 means fully sequential, which is the reference behavior.
	WorkerCount int

	Fetcher exchange.KlineFetcher
	Store   KlineWriter
	Logger  *slog.Logger
}

// Runner executes export runs.
type Runner struct {
	cfg    Config
	logger *slog.Logger
}

// NewRunner creates a runner. Fetcher and Store must be non-nil.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("export: fetcher is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("export: store is required")
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger}, nil
}

// job is one (symbol, interval) unit of work.
type job struct {
	symbol   string
	interval string
}

// Run executes the export. The first unrecovered fetch or storage error
// aborts the run; files already written for prior pairs remain on disk.
func (r *Runner) Run(ctx context.Context) error {
	log := r.logger.With("run_id", uuid.NewString())

	if err := r.prepareDirectories(); err != nil {
		return err
	}

	jobs := make([]job, 0, len(r.cfg.Symbols)*len(r.cfg.Intervals))
	for _, symbol := range r.cfg.Symbols {
		for _, interval := range r.cfg.Intervals {
			jobs = append(jobs, job{symbol: symbol, interval: interval})
		}
	}

	log.Info("starting export",
		"symbols", len(r.cfg.Symbols),
		"intervals", r.cfg.Intervals,
		"jobs", len(jobs),
		"workers", r.cfg.WorkerCount,
		"start", r.cfg.Range.Start(),
		"end", r.cfg.Range.End())

	// The summary collection is the only state shared across pairs.
	rows := make(map[string]summary.Row)
	var rowsMu sync.Mutex

	record := func(symbol string, hourly []models.Kline) {
		row := summary.Compute(symbol, hourly)
		rowsMu.Lock()
		rows[symbol] = row
		rowsMu.Unlock()
	}

	var err error
	if r.cfg.WorkerCount == 1 {
		err = r.runSequential(ctx, log, jobs, record)
	} else {
		err = r.runPool(ctx, log, jobs, record)
	}
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		log.Info("export complete, no hourly series requested, skipping summary")
		return nil
	}

	// Rows are written in the order symbols were requested.
	ordered := make([]summary.Row, 0, len(rows))
	for _, symbol := range r.cfg.Symbols {
		if row, ok := rows[symbol]; ok {
			ordered = append(ordered, row)
		}
	}

	summaryPath := filepath.Join(r.cfg.OutDir, "summary_metrics.csv")
	if err := r.cfg.Store.WriteSummary(summaryPath, ordered); err != nil {
		return err
	}

	log.Info("export complete", "summary", summaryPath, "symbols", len(ordered))
	return nil
}

func (r *Runner) runSequential(ctx context.Context, log *slog.Logger, jobs []job, record func(string, []models.Kline)) error {
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.exportPair(ctx, log, j, record); err != nil {
			return err
		}
	}
	return nil
}

// runPool processes pairs with a bounded worker pool. Each pair touches its
// own file path, so the only guarded state is the summary collection.
func (r *Runner) runPool(ctx context.Context, log *slog.Logger, jobs []job, record func(string, []models.Kline)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobCh := make(chan job)
	var wg sync.WaitGroup

	var firstErr error
	var errOnce sync.Once
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := 0; i < r.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				if ctx.Err() != nil {
					return
				}
				if err := r.exportPair(ctx, log, j, record); err != nil {
					fail(err)
					return
				}
			}
		}()
	}

feed:
	for _, j := range jobs {
		select {
		case jobCh <- j:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobCh)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// exportPair fetches one (symbol, interval) series, writes its CSV, and
// records the summary row when the pair carries the hourly interval.
func (r *Runner) exportPair(ctx context.Context, log *slog.Logger, j job, record func(string, []models.Kline)) error {
	log.Info("fetching", "symbol", j.symbol, "interval", j.interval)

	klines, err := r.cfg.Fetcher.FetchKlines(ctx, exchange.FetchRequest{
		Symbol:   j.symbol,
		Interval: j.interval,
		StartMS:  r.cfg.Range.StartMS,
		EndMS:    r.cfg.Range.EndMS,
	})
	if err != nil {
		return fmt.Errorf("export %s %s: %w", j.symbol, j.interval, err)
	}

	path := r.klinePath(j)
	if err := r.cfg.Store.WriteKlines(path, klines); err != nil {
		return fmt.Errorf("export %s %s: %w", j.symbol, j.interval, err)
	}

	log.Info("saved", "symbol", j.symbol, "interval", j.interval, "path", path, "rows", len(klines))

	if j.interval == summaryInterval {
		record(j.symbol, klines)
	}
	return nil
}

func (r *Runner) klinePath(j job) string {
	return filepath.Join(r.cfg.OutDir,
		"klines_"+j.interval,
		fmt.Sprintf("%s_%s.csv", j.symbol, j.interval))
}

// prepareDirectories creates the output root and one directory per
// interval before any network activity.
func (r *Runner) prepareDirectories() error {
	if err := os.MkdirAll(r.cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("export: create output directory: %w", err)
	}
	for _, interval := range r.cfg.Intervals {
		dir := filepath.Join(r.cfg.OutDir, "klines_"+interval)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export: create output directory: %w", err)
		}
	}
	return nil
}
