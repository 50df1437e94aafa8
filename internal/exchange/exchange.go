// Package exchange defines the interface for fetching historical kline data
// and provides the Binance market-data implementation.
//
// The interface is deliberately small: one operation turning a
// (symbol, interval, time-range) request into a complete, deduplicated,
// time-ordered series, regardless of how many pages the upstream API needs.
package exchange

import (
	"context"

	"github.com/johnayoung/go-binance-ohlcv-export/internal/models"
)

// KlineFetcher retrieves historical OHLCV kline data.
//
// Implementations should:
//   - Return klines in chronological order (oldest first)
//   - Contain no duplicate open times
//   - Include only klines whose open time lies within the requested bounds
//   - Handle upstream pagination and transient failures internally
type KlineFetcher interface {
	// FetchKlines retrieves the full series for the requested range. An
	// empty range yields an empty slice, not an error. The context can be
	// used for cancellation; it is checked between pages and during
	// backoff waits.
	FetchKlines(ctx context.Context, req FetchRequest) ([]models.Kline, error)
}

// FetchRequest specifies the parameters for one series fetch. Both bounds
// are inclusive epoch milliseconds.
type FetchRequest struct {
	Symbol   string
	Interval string
	StartMS  int64
	EndMS    int64
}

// ValidationError represents an invalid fetch request.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "validation error for field " + e.Field + ": " + e.Message
}

// Validate checks that the request is complete and internally consistent.
func (r *FetchRequest) Validate() error {
	if r.Symbol == "" {
		return &ValidationError{Field: "symbol", Message: "symbol cannot be empty"}
	}
	if r.Interval == "" {
		return &ValidationError{Field: "interval", Message: "interval cannot be empty"}
	}
	if r.StartMS < 0 {
		return &ValidationError{Field: "start", Message: "start time cannot be negative"}
	}
	if r.EndMS < r.StartMS {
		return &ValidationError{Field: "end", Message: "end time cannot precede start time"}
	}
	return nil
}
