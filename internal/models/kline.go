// Package models provides the data structures for Binance OHLCV market data.
// Prices and volumes are carried as shopspring decimals parsed from the
// exchange-supplied strings, so no binary floating-point rounding is
// introduced between the API response and the exported CSV text.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// klineFieldCount is the number of positional fields consumed from one raw
// /api/v3/klines row. The upstream array carries a 12th field which the
// exchange documents as ignorable.
const klineFieldCount = 11

// Kline represents one OHLCV bucket for a trading symbol at a fixed interval.
// Instances are immutable value objects: created by ParseKline, never
// mutated afterwards.
type Kline struct {
	OpenTimeMS          int64
	Open                decimal.Decimal
	High                decimal.Decimal
	Low                 decimal.Decimal
	Close               decimal.Decimal
	Volume              decimal.Decimal
	CloseTimeMS         int64
	QuoteVolume         decimal.Decimal
	Trades              int64
	TakerBuyBaseVolume  decimal.Decimal
	TakerBuyQuoteVolume decimal.Decimal
}

// ValidationError represents a kline validation error with field context.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// ParseKline converts one raw kline row, as returned by the Binance klines
// endpoint, into a Kline. The row is positional:
//
//	[open_time, open, high, low, close, volume, close_time, quote_volume,
//	 trades, taker_buy_base_volume, taker_buy_quote_volume, ...]
//
// Numeric price and volume fields arrive as quoted decimal strings and are
// parsed losslessly. Returns an error if the row is too short or any field
// fails to decode.
func ParseKline(row []json.RawMessage) (Kline, error) {
	if len(row) < klineFieldCount {
		return Kline{}, fmt.Errorf("kline row has %d fields, want at least %d", len(row), klineFieldCount)
	}

	var k Kline
	var err error

	if k.OpenTimeMS, err = parseEpochMS(row[0], "open_time"); err != nil {
		return Kline{}, err
	}
	if k.Open, err = parseDecimalField(row[1], "open"); err != nil {
		return Kline{}, err
	}
	if k.High, err = parseDecimalField(row[2], "high"); err != nil {
		return Kline{}, err
	}
	if k.Low, err = parseDecimalField(row[3], "low"); err != nil {
		return Kline{}, err
	}
	if k.Close, err = parseDecimalField(row[4], "close"); err != nil {
		return Kline{}, err
	}
	if k.Volume, err = parseDecimalField(row[5], "volume"); err != nil {
		return Kline{}, err
	}
	if k.CloseTimeMS, err = parseEpochMS(row[6], "close_time"); err != nil {
		return Kline{}, err
	}
	if k.QuoteVolume, err = parseDecimalField(row[7], "quote_volume"); err != nil {
		return Kline{}, err
	}
	if err = json.Unmarshal(row[8], &k.Trades); err != nil {
		return Kline{}, fmt.Errorf("invalid trades field: %w", err)
	}
	if k.TakerBuyBaseVolume, err = parseDecimalField(row[9], "taker_buy_base_volume"); err != nil {
		return Kline{}, err
	}
	if k.TakerBuyQuoteVolume, err = parseDecimalField(row[10], "taker_buy_quote_volume"); err != nil {
		return Kline{}, err
	}

	if err = k.Validate(); err != nil {
		return Kline{}, err
	}

	return k, nil
}

// Validate checks the structural invariants of a kline. The only invariant
// enforced here is temporal ordering; price relationships are taken as the
// exchange reports them.
func (k *Kline) Validate() error {
	if k.OpenTimeMS >= k.CloseTimeMS {
		return &ValidationError{
			Field:   "open_time",
			Message: fmt.Sprintf("open time %d must precede close time %d", k.OpenTimeMS, k.CloseTimeMS),
		}
	}
	return nil
}

// OpenTime returns the bucket open time as UTC wall clock.
func (k *Kline) OpenTime() time.Time {
	return time.UnixMilli(k.OpenTimeMS).UTC()
}

// CloseTime returns the bucket close time as UTC wall clock.
func (k *Kline) CloseTime() time.Time {
	return time.UnixMilli(k.CloseTimeMS).UTC()
}

// String returns a human-readable representation of the kline.
func (k *Kline) String() string {
	return fmt.Sprintf("Kline{OpenTime: %s, O: %s, H: %s, L: %s, C: %s, V: %s}",
		k.OpenTime().Format(time.RFC3339), k.Open, k.High, k.Low, k.Close, k.Volume)
}

func parseEpochMS(raw json.RawMessage, field string) (int64, error) {
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return 0, fmt.Errorf("invalid %s field: %w", field, err)
	}
	return ms, nil
}

func parseDecimalField(raw json.RawMessage, field string) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s field: %w", field, err)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s value %q: %w", field, s, err)
	}
	return d, nil
}
