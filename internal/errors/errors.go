// Package errors defines the error taxonomy shared by the exporter components.
// Each failure that can surface to the caller is one of four typed errors:
// ParseError (bad user-supplied date input), TransientNetworkError (retry
// budget exhausted on connection/timeout/rate-limit failures), HTTPError
// (non-retryable upstream response), and StorageError (destination path
// unwritable). All four support errors.As and unwrap to their cause where
// one exists.
package errors

import (
	"errors"
	"fmt"
	"net"
)

// ParseError reports a malformed date/time value supplied by the user.
// It aborts the run before any network activity.
type ParseError struct {
	Input string
	Err   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse timestamp %q: %v", e.Input, e.Err)
}

// Unwrap returns the underlying parse failure.
func (e *ParseError) Unwrap() error { return e.Err }

// TransientNetworkError reports that the retry budget was exhausted on
// conditions that are individually retryable: connection failures, timeouts,
// and HTTP 429 responses. Attempts is the number of requests made.
type TransientNetworkError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient failure persisted after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last error observed before the budget ran out.
func (e *TransientNetworkError) Unwrap() error { return e.Err }

// HTTPError reports a non-retryable upstream response: any non-2xx status
// other than 429, or a body that could not be decoded as a kline array.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d: %s", e.StatusCode, e.Message)
}

// StorageError reports that an export destination could not be written,
// typically because the parent directory does not exist.
type StorageError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("cannot write %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying filesystem error.
func (e *StorageError) Unwrap() error { return e.Err }

// Kind returns a short taxonomy name for an error, used when logging a
// fatal failure at the process boundary.
func Kind(err error) string {
	var (
		parseErr   *ParseError
		netErr     *TransientNetworkError
		httpErr    *HTTPError
		storageErr *StorageError
	)
	switch {
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &netErr):
		return "network"
	case errors.As(err, &httpErr):
		return "http"
	case errors.As(err, &storageErr):
		return "storage"
	default:
		return "unknown"
	}
}

// IsTransient reports whether a request-level error is worth retrying:
// connection failures, timeouts, and rate-limit responses. Decoding
// failures and other HTTP statuses are permanent.
func IsTransient(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
