// Package storage serializes kline series and summary metrics to flat
// delimited files. It defines the external file contract: fixed column
// orders, UTC timestamp rendering, and fixed-precision numeric formatting.
package storage

import (
	"encoding/csv"
	"log/slog"
	"os"
	"strconv"
	"time"

	apperrors "github.com/johnayoung/go-binance-ohlcv-export/internal/errors"
	"github.com/johnayoung/go-binance-ohlcv-export/internal/models"
	"github.com/johnayoung/go-binance-ohlcv-export/internal/summary"
)

const (
	// timestampLayout renders epoch milliseconds as UTC wall clock with
	// no timezone suffix and no fractional seconds.
	timestampLayout = "2006-01-02 15:04:05"

	// Fractional digits for exported numeric fields.
	volumeScale  = 10
	percentScale = 6
)

var klineHeader = []string{
	"open_time_utc",
	"open",
	"high",
	"low",
	"close",
	"volume",
	"close_time_utc",
	"quote_volume",
	"trades",
	"taker_buy_base_volume",
	"taker_buy_quote_volume",
}

var summaryHeader = []string{
	"symbol",
	"price_change_90d_pct",
	"price_change_180d_pct",
	"avg_daily_volume_base",
	"avg_daily_volume_quote",
}

// CSVStore writes kline series and summary tables as CSV files. The caller
// is responsible for creating parent directories; a missing directory
// surfaces as a StorageError.
type CSVStore struct {
	logger *slog.Logger
}

// NewCSVStore creates a CSV store. A nil logger falls back to the default.
func NewCSVStore(logger *slog.Logger) *CSVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVStore{logger: logger}
}

// WriteKlines writes one header row followed by one row per kline in input
// order. Prices and volumes are rendered with 10 fractional digits, trade
// counts as plain integers.
func (s *CSVStore) WriteKlines(path string, klines []models.Kline) error {
	records := make([][]string, 0, len(klines))
	for _, k := range klines {
		records = append(records, []string{
			formatTimestamp(k.OpenTimeMS),
			k.Open.StringFixed(volumeScale),
			k.High.StringFixed(volumeScale),
			k.Low.StringFixed(volumeScale),
			k.Close.StringFixed(volumeScale),
			k.Volume.StringFixed(volumeScale),
			formatTimestamp(k.CloseTimeMS),
			k.QuoteVolume.StringFixed(volumeScale),
			strconv.FormatInt(k.Trades, 10),
			k.TakerBuyBaseVolume.StringFixed(volumeScale),
			k.TakerBuyQuoteVolume.StringFixed(volumeScale),
		})
	}

	if err := s.writeFile(path, klineHeader, records); err != nil {
		return err
	}

	s.logger.Debug("wrote kline csv", "path", path, "rows", len(klines))
	return nil
}

// WriteSummary writes the aggregated metrics table, one row per symbol in
// input order. Percentage fields carry 6 fractional digits, volumes 10;
// NaN metrics render as the literal NaN.
func (s *CSVStore) WriteSummary(path string, rows []summary.Row) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Symbol,
			formatFloat(r.Change90Pct, percentScale),
			formatFloat(r.Change180Pct, percentScale),
			formatFloat(r.AvgDailyBase, volumeScale),
			formatFloat(r.AvgDailyQuote, volumeScale),
		})
	}

	if err := s.writeFile(path, summaryHeader, records); err != nil {
		return err
	}

	s.logger.Debug("wrote summary csv", "path", path, "rows", len(rows))
	return nil
}

func (s *CSVStore) writeFile(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return &apperrors.StorageError{Path: path, Err: err}
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return &apperrors.StorageError{Path: path, Err: err}
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return &apperrors.StorageError{Path: path, Err: err}
	}

	if err := f.Close(); err != nil {
		return &apperrors.StorageError{Path: path, Err: err}
	}
	return nil
}

func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(timestampLayout)
}

func formatFloat(v float64, scale int) string {
	return strconv.FormatFloat(v, 'f', scale, 64)
}
