// Binance market-data adapter. Uses the public market-data-only domain,
// which serves /api/v3/klines without an API key.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	apperrors "github.com/johnayoung/go-binance-ohlcv-export/internal/errors"
	"github.com/johnayoung/go-binance-ohlcv-export/internal/models"
)

const (
	binanceBaseURL = "https://data-api.binance.vision"
	klinesEndpoint = "/api/v3/klines"

	// pageLimit is the upstream API's maximum page size, treated as a
	// protocol constant.
	pageLimit = 1000

	// defaultRetryAttempts is the shared budget for connection failures,
	// timeouts, and 429 responses on a single page request.
	defaultRetryAttempts = 3

	// initialRetryDelay seeds the 2^attempt backoff sequence: 2s, 4s, 8s...
	initialRetryDelay = 2 * time.Second
	retryMultiplier   = 2.0

	// interPageDelay paces consecutive page requests within one series
	// fetch, keeping well under the upstream rate limits.
	interPageDelay = 150 * time.Millisecond

	defaultTimeout = 20 * time.Second
)

// AdapterConfig configures a BinanceAdapter. Zero values fall back to the
// defaults above.
type AdapterConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts int
	PageDelay     time.Duration
	Logger        *slog.Logger
}

// BinanceAdapter implements KlineFetcher against the Binance spot
// market-data REST API.
type BinanceAdapter struct {
	httpClient *http.Client
	baseURL    string
	attempts   int
	pageDelay  *rate.Limiter
	logger     *slog.Logger

	// sleep and newBackoff are substitution points for deterministic
	// retry tests.
	sleep      func(ctx context.Context, d time.Duration) error
	newBackoff func() backoff.BackOff
}

// NewBinanceAdapter creates an adapter with default configuration.
func NewBinanceAdapter() *BinanceAdapter {
	return NewBinanceAdapterWithConfig(AdapterConfig{})
}

// NewBinanceAdapterWithConfig creates an adapter with explicit settings.
func NewBinanceAdapterWithConfig(cfg AdapterConfig) *BinanceAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = binanceBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = interPageDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &BinanceAdapter{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:   cfg.BaseURL,
		attempts:  cfg.RetryAttempts,
		pageDelay: rate.NewLimiter(rate.Every(cfg.PageDelay), 1),
		logger:    cfg.Logger,
		sleep:     sleepContext,
		newBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initialRetryDelay
			b.Multiplier = retryMultiplier
			b.RandomizationFactor = 0 // deterministic 2^attempt waits
			b.MaxInterval = time.Hour
			b.MaxElapsedTime = 0
			b.Reset()
			return b
		},
	}
}

// FetchKlines implements the KlineFetcher interface. It drives the
// pagination loop: request a page, advance the cursor one millisecond past
// the last open time, and stop on an empty page, a short page, or a page
// reaching the end bound. The accumulated series is then deduplicated by
// open time (last seen wins), sorted ascending, and trimmed to the end
// bound.
func (b *BinanceAdapter) FetchKlines(ctx context.Context, req FetchRequest) ([]models.Kline, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	b.logger.Debug("fetching klines",
		"symbol", req.Symbol,
		"interval", req.Interval,
		"start", req.StartMS,
		"end", req.EndMS)

	var accumulated []models.Kline
	cursor := req.StartMS
	pages := 0

	for {
		// The limiter admits the first page immediately and paces the
		// rest; Wait honors context cancellation between pages.
		if err := b.pageDelay.Wait(ctx); err != nil {
			return nil, err
		}

		rows, err := b.fetchPage(ctx, req.Symbol, req.Interval, cursor, req.EndMS)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		pages++

		page := make([]models.Kline, 0, len(rows))
		for _, row := range rows {
			k, perr := models.ParseKline(row)
			if perr != nil {
				return nil, &apperrors.HTTPError{
					StatusCode: http.StatusOK,
					Message:    fmt.Sprintf("malformed kline row: %v", perr),
				}
			}
			page = append(page, k)
		}
		accumulated = append(accumulated, page...)

		lastOpen := page[len(page)-1].OpenTimeMS
		if lastOpen >= req.EndMS || len(rows) < pageLimit {
			break
		}

		// One millisecond past the last seen open time: guarantees
		// forward progress under inclusive boundary semantics.
		cursor = lastOpen + 1
	}

	series := finalizeSeries(accumulated, req.EndMS)

	b.logger.Debug("fetched klines",
		"symbol", req.Symbol,
		"interval", req.Interval,
		"pages", pages,
		"count", len(series))

	return series, nil
}

// fetchPage performs one bounded GET with retry. Connection failures,
// timeouts, and 429 responses share a single attempt budget; any other
// non-2xx status or an undecodable body fails immediately.
func (b *BinanceAdapter) fetchPage(ctx context.Context, symbol, interval string, startMS, endMS int64) ([][]json.RawMessage, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("startTime", strconv.FormatInt(startMS, 10))
	params.Set("endTime", strconv.FormatInt(endMS, 10))
	params.Set("limit", strconv.Itoa(pageLimit))

	requestURL := b.baseURL + klinesEndpoint + "?" + params.Encode()

	bo := b.newBackoff()
	var lastErr error

	for attempt := 1; attempt <= b.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := b.doRequest(ctx, requestURL)
		if err == nil {
			return rows, nil
		}
		if !apperrors.IsTransient(err) {
			return nil, err
		}
		lastErr = err

		if attempt == b.attempts {
			break
		}

		wait := bo.NextBackOff()
		b.logger.Warn("transient failure, backing off",
			"symbol", symbol,
			"attempt", attempt,
			"max_attempts", b.attempts,
			"wait", wait,
			"error", err)
		if serr := b.sleep(ctx, wait); serr != nil {
			return nil, serr
		}
	}

	return nil, &apperrors.TransientNetworkError{Attempts: b.attempts, Err: lastErr}
}

// doRequest performs a single GET and decodes the kline array.
func (b *BinanceAdapter) doRequest(ctx context.Context, requestURL string) ([][]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, &apperrors.HTTPError{Message: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "go-binance-ohlcv-export/1.0")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		// url.Error implements net.Error, so connection failures and
		// timeouts classify as transient.
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &apperrors.HTTPError{StatusCode: resp.StatusCode, Message: "rate limited"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apperrors.HTTPError{StatusCode: resp.StatusCode, Message: truncateBody(body)}
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &apperrors.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("malformed response body: %v", err),
		}
	}

	return rows, nil
}

// finalizeSeries deduplicates by open time (last seen wins, duplicates at
// page boundaries are expected to be byte-identical), sorts ascending, and
// drops klines past the end bound.
func finalizeSeries(klines []models.Kline, endMS int64) []models.Kline {
	dedup := make(map[int64]models.Kline, len(klines))
	for _, k := range klines {
		dedup[k.OpenTimeMS] = k
	}

	series := make([]models.Kline, 0, len(dedup))
	for _, k := range dedup {
		if k.OpenTimeMS <= endMS {
			series = append(series, k)
		}
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].OpenTimeMS < series[j].OpenTimeMS
	})

	return series
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncateBody(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
