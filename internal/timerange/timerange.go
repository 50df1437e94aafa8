// Package timerange resolves user-supplied day-count or explicit start/end
// values into an absolute epoch-millisecond interval in UTC.
package timerange

import (
	"strings"
	"time"

	apperrors "github.com/johnayoung/go-binance-ohlcv-export/internal/errors"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05"
)

// DayMS is the length of one calendar day in milliseconds.
const DayMS = int64(24 * time.Hour / time.Millisecond)

// Range is a pair of inclusive epoch-millisecond bounds, computed once per
// run and read-only thereafter.
type Range struct {
	StartMS int64
	EndMS   int64
}

// Start returns the lower bound as UTC wall clock.
func (r Range) Start() time.Time { return time.UnixMilli(r.StartMS).UTC() }

// End returns the upper bound as UTC wall clock.
func (r Range) End() time.Time { return time.UnixMilli(r.EndMS).UTC() }

// Resolve converts a day-count and optional explicit start/end strings into
// a Range, using the current UTC time when end is omitted. Start, when
// omitted, is derived as end minus days whole days.
func Resolve(days int, start, end string) (Range, error) {
	return ResolveAt(days, start, end, time.Now().UTC())
}

// ResolveAt is Resolve with an explicit "now", used to make range
// derivation deterministic in tests.
func ResolveAt(days int, start, end string, now time.Time) (Range, error) {
	endTime := now
	if end != "" {
		t, err := ParseTimestamp(end)
		if err != nil {
			return Range{}, err
		}
		endTime = t
	}

	startTime := endTime.Add(-time.Duration(days) * 24 * time.Hour)
	if start != "" {
		t, err := ParseTimestamp(start)
		if err != nil {
			return Range{}, err
		}
		startTime = t
	}

	return Range{StartMS: startTime.UnixMilli(), EndMS: endTime.UnixMilli()}, nil
}

// ParseTimestamp parses a UTC wall-clock timestamp in either YYYY-MM-DD or
// YYYY-MM-DDTHH:MM:SS form. No timezone conversion is applied.
func ParseTimestamp(s string) (time.Time, error) {
	layout := dateLayout
	if strings.Contains(s, "T") {
		layout = dateTimeLayout
	}

	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return time.Time{}, &apperrors.ParseError{Input: s, Err: err}
	}
	return t, nil
}
