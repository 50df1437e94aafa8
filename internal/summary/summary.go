// Package summary derives per-symbol summary statistics from a time-ordered
// hourly kline series: look-back percentage price changes and average daily
// traded volumes. Compute is a pure function with no I/O or hidden state.
package summary

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/johnayoung/go-binance-ohlcv-export/internal/models"
	"github.com/johnayoung/go-binance-ohlcv-export/internal/timerange"
)

// Look-back windows in days.
const (
	shortWindowDays = 90
	longWindowDays  = 180
)

const dayKeyLayout = "2006-01-02"

// Row is one line of the summary metrics table. A NaN value signals "no
// data", distinct from a computed zero change.
type Row struct {
	Symbol        string
	Change90Pct   float64
	Change180Pct  float64
	AvgDailyBase  float64
	AvgDailyQuote float64
}

// Compute derives the summary row for one symbol from its hourly series.
// The series must be sorted ascending by open time and may be empty, in
// which case all four metrics are NaN.
func Compute(symbol string, hourly []models.Kline) Row {
	if len(hourly) == 0 {
		nan := math.NaN()
		return Row{Symbol: symbol, Change90Pct: nan, Change180Pct: nan, AvgDailyBase: nan, AvgDailyQuote: nan}
	}

	last := hourly[len(hourly)-1]
	endClose := last.Close

	avgBase, avgQuote := dailyAverages(hourly)

	return Row{
		Symbol:        symbol,
		Change90Pct:   windowChange(hourly, last.OpenTimeMS-shortWindowDays*timerange.DayMS, endClose),
		Change180Pct:  windowChange(hourly, last.OpenTimeMS-longWindowDays*timerange.DayMS, endClose),
		AvgDailyBase:  avgBase,
		AvgDailyQuote: avgQuote,
	}
}

// windowChange computes the percentage price change from the reference
// close to the series end close. The reference is the close of the first
// kline at or after the window start; a zero reference yields NaN.
func windowChange(klines []models.Kline, targetMS int64, endClose decimal.Decimal) float64 {
	ref := closeAtOrAfter(klines, targetMS)
	if ref.IsZero() {
		return math.NaN()
	}

	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	return endClose.Div(ref).Sub(one).Mul(hundred).InexactFloat64()
}

// closeAtOrAfter returns the close of the first kline whose open time is at
// or after the target, falling back to the last close when the series is
// too short to reach back that far.
func closeAtOrAfter(klines []models.Kline, targetMS int64) decimal.Decimal {
	for _, k := range klines {
		if k.OpenTimeMS >= targetMS {
			return k.Close
		}
	}
	return klines[len(klines)-1].Close
}

// dailyAverages groups klines by their UTC calendar day, sums base and
// quote volume per day, and returns the mean of the per-day sums. Partial
// days count as full days.
func dailyAverages(klines []models.Kline) (float64, float64) {
	base := make(map[string]decimal.Decimal)
	quote := make(map[string]decimal.Decimal)

	for _, k := range klines {
		day := k.OpenTime().Format(dayKeyLayout)
		base[day] = base[day].Add(k.Volume)
		quote[day] = quote[day].Add(k.QuoteVolume)
	}

	days := decimal.NewFromInt(int64(len(base)))

	var baseTotal, quoteTotal decimal.Decimal
	for _, v := range base {
		baseTotal = baseTotal.Add(v)
	}
	for _, v := range quote {
		quoteTotal = quoteTotal.Add(v)
	}

	return baseTotal.Div(days).InexactFloat64(), quoteTotal.Div(days).InexactFloat64()
}
