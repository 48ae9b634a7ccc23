// Package openmeteo fetches hourly weather observations from the Open-Meteo
// forecast and archive APIs and normalizes them into domain observations.
package openmeteo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/observability"
)

const (
	endpointArchive  = "archive"
	endpointForecast = "forecast"
)

// Options configures a Client.
type Options struct {
	ArchiveURL     string
	ForecastURL    string
	Timezone       string
	Timeout        time.Duration
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Client implements the weather source contract against Open-Meteo.
// It does not cache responses.
type Client struct {
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker[[]byte]
	archiveURL  string
	forecastURL string
	timezone    string
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewClient creates an Open-Meteo client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Timezone == "" {
		opts.Timezone = "auto"
	}
	if opts.BackoffMax < opts.BackoffInitial {
		opts.BackoffMax = opts.BackoffInitial
	}
	return &Client{
		httpClient:  &http.Client{Timeout: opts.Timeout},
		breaker:     newBreaker("open-meteo"),
		archiveURL:  strings.TrimRight(opts.ArchiveURL, "/"),
		forecastURL: strings.TrimRight(opts.ForecastURL, "/"),
		timezone:    opts.Timezone,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.BackoffInitial,
		maxBackoff:  opts.BackoffMax,
		metrics:     metrics,
		logger:      logger,
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// A definitive 4xx means the upstream is healthy.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrInvalidRequest)
		},
	})
}

// FetchCurrent returns the current conditions at loc. Date and hour are the
// location-local time reported by the forecast endpoint.
func (c *Client) FetchCurrent(ctx context.Context, loc domain.Location) (domain.HourlyObservation, error) {
	params := c.baseParams(loc)
	params.Set("current", variableList())

	var obs domain.HourlyObservation
	err := c.fetch(ctx, endpointForecast, c.forecastURL+"/v1/forecast?"+params.Encode(), func(body []byte) error {
		resp, err := decodeForecast(body)
		if err != nil {
			return err
		}
		o, defaulted, err := resp.observation(loc.Name, domain.Now())
		if err != nil {
			return err
		}
		c.reportDefaults(loc, o.Date, defaulted)
		obs = o
		return nil
	})
	return obs, err
}

// FetchArchivalHour returns the archived observation for one local hour.
func (c *Client) FetchArchivalHour(ctx context.Context, loc domain.Location, date time.Time, hour int) (domain.HourlyObservation, error) {
	if !domain.ValidHour(hour) {
		return domain.HourlyObservation{}, fmt.Errorf("%w: hour %d out of range", domain.ErrInvalidRequest, hour)
	}
	batch, err := c.fetchDay(ctx, loc, date, hour)
	if err != nil {
		return domain.HourlyObservation{}, err
	}
	return batch.Hours[hour], nil
}

// FetchArchivalDay returns all 24 archived hours of date at loc as a
// validated batch.
func (c *Client) FetchArchivalDay(ctx context.Context, loc domain.Location, date time.Time) (domain.DailyBatch, error) {
	return c.fetchDay(ctx, loc, date, -1)
}

// fetchDay fetches one archived day. When needHour is an hour of the day, a
// response with every variable null at that hour is treated as malformed.
func (c *Client) fetchDay(ctx context.Context, loc domain.Location, date time.Time, needHour int) (domain.DailyBatch, error) {
	date = domain.DateOf(date)
	day := domain.FormatDate(date)

	params := c.baseParams(loc)
	params.Set("start_date", day)
	params.Set("end_date", day)
	params.Set("hourly", variableList())

	var batch domain.DailyBatch
	err := c.fetch(ctx, endpointArchive, c.archiveURL+"/v1/archive?"+params.Encode(), func(body []byte) error {
		resp, err := decodeArchive(body)
		if err != nil {
			return err
		}
		b, nulls, err := resp.dailyBatch(loc, date, domain.Now())
		if err != nil {
			return err
		}
		if domain.ValidHour(needHour) && nulls.allNull(needHour) {
			return fmt.Errorf("hourly values for %s %02d:00 are all null", domain.FormatDate(date), needHour)
		}
		c.reportDefaults(loc, date, nulls.total())
		batch = b
		return nil
	})
	return batch, err
}

func (c *Client) baseParams(loc domain.Location) url.Values {
	return url.Values{
		"latitude":           {strconv.FormatFloat(loc.Latitude, 'f', -1, 64)},
		"longitude":          {strconv.FormatFloat(loc.Longitude, 'f', -1, 64)},
		"timezone":           {c.timezone},
		"temperature_unit":   {"celsius"},
		"wind_speed_unit":    {"kmh"},
		"precipitation_unit": {"mm"},
	}
}

func (c *Client) reportDefaults(loc domain.Location, date time.Time, n int) {
	if n == 0 {
		return
	}
	c.metrics.SourceDefaults.Add(float64(n))
	c.logger.Warn("missing source values replaced with defaults",
		"location", loc.Name, "date", domain.FormatDate(date), "count", n)
}

// fetch runs the request with retries. decode validates and consumes a 200
// body; a decode error is treated like any other transient failure.
func (c *Client) fetch(ctx context.Context, endpoint, fullURL string, decode func([]byte) error) error {
	var lastErr error
	for attempt := range c.maxAttempts {
		if attempt > 0 {
			wait := c.backoffFor(attempt-1, lastErr)
			c.metrics.SourceRetries.WithLabelValues(endpoint).Inc()
			c.logger.Warn("retrying source request",
				"endpoint", endpoint, "attempt", attempt+1, "wait", wait, "error", lastErr)
			if !sleepWithContext(ctx, wait) {
				return fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, endpoint, ctx.Err())
			}
		}

		start := time.Now()
		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.doRequest(ctx, fullURL)
		})
		c.metrics.SourceDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if err == nil {
			if err = decode(body); err == nil {
				c.metrics.SourceRequests.WithLabelValues(endpoint, "success").Inc()
				return nil
			}
			err = fmt.Errorf("malformed %s response: %w", endpoint, err)
		}

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			c.metrics.SourceRequests.WithLabelValues(endpoint, "circuit_open").Inc()
			return fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, endpoint, err)
		case errors.Is(err, domain.ErrInvalidRequest):
			c.metrics.SourceRequests.WithLabelValues(endpoint, "invalid").Inc()
			return err
		case ctx.Err() != nil:
			c.metrics.SourceRequests.WithLabelValues(endpoint, "unavailable").Inc()
			return fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, endpoint, ctx.Err())
		}
		c.metrics.SourceRequests.WithLabelValues(endpoint, "retry").Inc()
		lastErr = err
	}

	c.metrics.SourceRequests.WithLabelValues(endpoint, "unavailable").Inc()
	return fmt.Errorf("%w: %s failed after %d attempts: %w", domain.ErrSourceUnavailable, endpoint, c.maxAttempts, lastErr)
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open-meteo request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &statusError{
			code:       resp.StatusCode,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			body:       errorReason(body),
		}
	default:
		return nil, fmt.Errorf("%w: open-meteo status %d: %s", domain.ErrInvalidRequest, resp.StatusCode, errorReason(body))
	}
}

// backoffFor returns the wait before retry n (0-based). A Retry-After hint
// from the failed attempt wins over the exponential schedule; both are
// capped at maxBackoff.
func (c *Client) backoffFor(n int, cause error) time.Duration {
	var se *statusError
	if errors.As(cause, &se) && se.retryAfter > 0 {
		return min(se.retryAfter, c.maxBackoff)
	}
	wait := c.backoff
	for range n {
		wait *= 2
		if wait >= c.maxBackoff {
			return c.maxBackoff
		}
	}
	return min(wait, c.maxBackoff)
}

// statusError is a transient (429 or 5xx) HTTP failure.
type statusError struct {
	code       int
	retryAfter time.Duration
	body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("open-meteo status %d: %s", e.code, e.body)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
