package storage

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/johnayoung/go-binance-ohlcv-export/internal/errors"
	"github.com/johnayoung/go-binance-ohlcv-export/internal/models"
	"github.com/johnayoung/go-binance-ohlcv-export/internal/summary"
)

func testKline(openMS int64) models.Kline {
	return models.Kline{
		OpenTimeMS:          openMS,
		CloseTimeMS:         openMS + 3599999,
		Open:                decimal.RequireFromString("46216.93"),
		High:                decimal.RequireFromString("46731.39"),
		Low:                 decimal.RequireFromString("46208.37"),
		Close:               decimal.RequireFromString("46656.13"),
		Volume:              decimal.RequireFromString("1086.05502"),
		QuoteVolume:         decimal.RequireFromString("50456351.72115372"),
		Trades:              43127,
		TakerBuyBaseVolume:  decimal.RequireFromString("540.942888"),
		TakerBuyQuoteVolume: decimal.RequireFromString("25131379.35"),
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteKlinesRoundTrip(t *testing.T) {
	openMS := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	klines := []models.Kline{testKline(openMS), testKline(openMS + 3600_000)}

	path := filepath.Join(t.TempDir(), "BTCUSDT_1h.csv")
	store := NewCSVStore(nil)
	require.NoError(t, store.WriteKlines(path, klines))

	records := readCSV(t, path)
	require.Len(t, records, len(klines)+1, "header plus one row per kline")

	assert.Equal(t, klineHeader, records[0])

	row := records[1]
	assert.Equal(t, "2022-01-01 00:00:00", row[0])
	assert.Equal(t, "46216.9300000000", row[1])
	assert.Equal(t, "1086.0550200000", row[5])
	assert.Equal(t, "2022-01-01 00:59:59", row[6])
	assert.Equal(t, "50456351.7211537200", row[7])
	assert.Equal(t, "43127", row[8])
	assert.Equal(t, "25131379.3500000000", row[10])

	assert.Equal(t, "2022-01-01 01:00:00", records[2][0])
}

func TestWriteKlinesEmptySeries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	store := NewCSVStore(nil)
	require.NoError(t, store.WriteKlines(path, nil))

	records := readCSV(t, path)
	require.Len(t, records, 1, "header only")
}

func TestWriteKlinesMissingParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist", "x.csv")
	store := NewCSVStore(nil)

	err := store.WriteKlines(path, nil)
	require.Error(t, err)

	var serr *apperrors.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, path, serr.Path)
}

func TestWriteSummary(t *testing.T) {
	rows := []summary.Row{
		{Symbol: "BTCUSDT", Change90Pct: 12.3456789, Change180Pct: -4.2, AvgDailyBase: 3600, AvgDailyQuote: 180000},
		{Symbol: "NEWUSDT", Change90Pct: math.NaN(), Change180Pct: math.NaN(), AvgDailyBase: math.NaN(), AvgDailyQuote: math.NaN()},
	}

	path := filepath.Join(t.TempDir(), "summary_metrics.csv")
	store := NewCSVStore(nil)
	require.NoError(t, store.WriteSummary(path, rows))

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, summaryHeader, records[0])

	assert.Equal(t, []string{"BTCUSDT", "12.345679", "-4.200000", "3600.0000000000", "180000.0000000000"}, records[1])
	assert.Equal(t, []string{"NEWUSDT", "NaN", "NaN", "NaN", "NaN"}, records[2])
}

func TestWriteSummaryMissingParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "summary_metrics.csv")
	store := NewCSVStore(nil)

	var serr *apperrors.StorageError
	require.ErrorAs(t, store.WriteSummary(path, nil), &serr)
}
