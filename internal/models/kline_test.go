package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRow(t *testing.T, raw string) []json.RawMessage {
	t.Helper()
	var row []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &row))
	return row
}

func TestParseKline(t *testing.T) {
	// A real-shaped /api/v3/klines row: open time, OHLCV strings, close
	// time, quote volume, trades, taker-buy volumes, ignored field.
	row := mustRow(t, `[
		1640995200000,
		"46216.93000000",
		"46731.39000000",
		"46208.37000000",
		"46656.13000000",
		"1086.05502000",
		1640998799999,
		"50456351.72115372",
		43127,
		"540.94288800",
		"25131379.35000000",
		"0"
	]`)

	k, err := ParseKline(row)
	require.NoError(t, err)

	assert.Equal(t, int64(1640995200000), k.OpenTimeMS)
	assert.Equal(t, int64(1640998799999), k.CloseTimeMS)
	assert.Equal(t, "46216.93", k.Open.String())
	assert.Equal(t, "46656.13", k.Close.String())
	assert.Equal(t, int64(43127), k.Trades)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), k.OpenTime())

	// Decimal strings survive parsing without floating-point rounding.
	assert.True(t, k.QuoteVolume.Equal(decimal.RequireFromString("50456351.72115372")))
	assert.Equal(t, "50456351.7211537200", k.QuoteVolume.StringFixed(10))
}

func TestParseKlineExactSmallValues(t *testing.T) {
	row := mustRow(t, `[
		1640995200000,
		"0.00000001", "0.00000002", "0.00000001", "0.00000002",
		"12345678.9", 1640998799999, "0.12", 1, "0.01", "0.001", "0"
	]`)

	k, err := ParseKline(row)
	require.NoError(t, err)
	assert.Equal(t, "0.0000000100", k.Open.StringFixed(10))
	assert.Equal(t, "0.0000000200", k.Close.StringFixed(10))
}

func TestParseKlineShortRow(t *testing.T) {
	row := mustRow(t, `[1640995200000, "1.0", "1.0"]`)

	_, err := ParseKline(row)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fields")
}

func TestParseKlineBadDecimal(t *testing.T) {
	row := mustRow(t, `[
		1640995200000,
		"not-a-number", "1.0", "1.0", "1.0",
		"1.0", 1640998799999, "1.0", 1, "1.0", "1.0", "0"
	]`)

	_, err := ParseKline(row)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}

func TestParseKlineRejectsInvertedTimes(t *testing.T) {
	row := mustRow(t, `[
		1640998799999,
		"1.0", "1.0", "1.0", "1.0",
		"1.0", 1640995200000, "1.0", 1, "1.0", "1.0", "0"
	]`)

	_, err := ParseKline(row)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "open_time", verr.Field)
}
