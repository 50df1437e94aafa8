package summary

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/go-binance-ohlcv-export/internal/models"
)

const hourMS = int64(3600_000)

// midnight UTC, 2022-01-01
var seriesStartMS = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

func hourlyKline(openMS int64, close, volume, quoteVolume string) models.Kline {
	return models.Kline{
		OpenTimeMS:  openMS,
		CloseTimeMS: openMS + hourMS - 1,
		Open:        decimal.RequireFromString(close),
		High:        decimal.RequireFromString(close),
		Low:         decimal.RequireFromString(close),
		Close:       decimal.RequireFromString(close),
		Volume:      decimal.RequireFromString(volume),
		QuoteVolume: decimal.RequireFromString(quoteVolume),
		Trades:      1,
	}
}

func TestComputeEmptySeries(t *testing.T) {
	row := Compute("BTCUSDT", nil)

	assert.Equal(t, "BTCUSDT", row.Symbol)
	assert.True(t, math.IsNaN(row.Change90Pct))
	assert.True(t, math.IsNaN(row.Change180Pct))
	assert.True(t, math.IsNaN(row.AvgDailyBase))
	assert.True(t, math.IsNaN(row.AvgDailyQuote))
}

func TestComputeFlatPriceSeries(t *testing.T) {
	series := make([]models.Kline, 0, 48)
	for i := 0; i < 48; i++ {
		series = append(series, hourlyKline(seriesStartMS+int64(i)*hourMS, "100.00", "1", "100"))
	}

	row := Compute("BTCUSDT", series)
	assert.InDelta(t, 0.0, row.Change90Pct, 1e-4)
	assert.InDelta(t, 0.0, row.Change180Pct, 1e-4)
}

func TestComputeShortSeriesFallsBackToEarliestClose(t *testing.T) {
	// Both look-back targets precede the series, so the reference close
	// is the first available sample.
	series := []models.Kline{
		hourlyKline(seriesStartMS, "100", "1", "100"),
		hourlyKline(seriesStartMS+hourMS, "105", "1", "100"),
		hourlyKline(seriesStartMS+2*hourMS, "110", "1", "100"),
	}

	row := Compute("ETHUSDT", series)
	assert.InDelta(t, 10.0, row.Change90Pct, 1e-9)
	assert.InDelta(t, 10.0, row.Change180Pct, 1e-9)
}

func TestComputeReferenceIsFirstSampleAtOrAfterTarget(t *testing.T) {
	// Hourly closes over 91 days; the 90d reference lands exactly one
	// day into the series.
	hours := 91 * 24
	series := make([]models.Kline, 0, hours)
	for i := 0; i < hours; i++ {
		close := decimal.NewFromInt(int64(1000 + i)).String()
		series = append(series, hourlyKline(seriesStartMS+int64(i)*hourMS, close, "1", "100"))
	}

	last := series[len(series)-1]
	targetMS := last.OpenTimeMS - 90*24*hourMS
	ref := closeAtOrAfter(series, targetMS)

	// First open at or after target is the sample exactly 90 days back.
	require.Equal(t, "1023", ref.String())

	endClose := 1000.0 + float64(hours-1)
	want := (endClose/1023.0 - 1.0) * 100.0
	row := Compute("BTCUSDT", series)
	assert.InDelta(t, want, row.Change90Pct, 1e-9)
}

func TestComputeZeroReferenceClose(t *testing.T) {
	series := []models.Kline{
		hourlyKline(seriesStartMS, "0", "1", "100"),
		hourlyKline(seriesStartMS+hourMS, "50", "1", "100"),
	}

	row := Compute("NEWUSDT", series)
	assert.True(t, math.IsNaN(row.Change90Pct), "division by a zero reference must yield NaN")
	assert.True(t, math.IsNaN(row.Change180Pct))
	assert.False(t, math.IsNaN(row.AvgDailyBase))
}

func TestComputeAverageDailyVolumes(t *testing.T) {
	// Day one: 24 hours at volume 100 (quote 5000). Day two: 24 hours at
	// volume 200 (quote 10000). Per-day sums 2400/4800 base and
	// 120000/240000 quote; the mean across days is 3600 and 180000.
	series := make([]models.Kline, 0, 48)
	for i := 0; i < 24; i++ {
		series = append(series, hourlyKline(seriesStartMS+int64(i)*hourMS, "100", "100", "5000"))
	}
	for i := 24; i < 48; i++ {
		series = append(series, hourlyKline(seriesStartMS+int64(i)*hourMS, "100", "200", "10000"))
	}

	row := Compute("BTCUSDT", series)
	assert.Equal(t, 3600.0, row.AvgDailyBase)
	assert.Equal(t, 180000.0, row.AvgDailyQuote)
}

func TestComputePartialDaysCountAsFullDays(t *testing.T) {
	// One full day plus a single hour of the next day: two day buckets.
	series := make([]models.Kline, 0, 25)
	for i := 0; i < 25; i++ {
		series = append(series, hourlyKline(seriesStartMS+int64(i)*hourMS, "100", "100", "5000"))
	}

	row := Compute("BTCUSDT", series)
	// (2400 + 100) / 2
	assert.Equal(t, 1250.0, row.AvgDailyBase)
}
