package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/observability"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var (
	testLoc  = domain.Location{Name: "Menlo Park, CA", Latitude: 37.453, Longitude: -122.1817}
	testDate = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
)

func testClient(baseURL string, maxAttempts int) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		breaker:     newBreaker("test"),
		archiveURL:  baseURL,
		forecastURL: baseURL,
		timezone:    "auto",
		maxAttempts: maxAttempts,
		backoff:     time.Millisecond,
		maxBackoff:  5 * time.Millisecond,
		metrics:     observability.NewMetricsForTesting(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// archiveBody builds a 24-hour archive payload; temperature at hour h is h/2.
func archiveBody(date time.Time) map[string]any {
	times := make([]string, 24)
	temps := make([]any, 24)
	wind := make([]any, 24)
	precip := make([]any, 24)
	cloud := make([]any, 24)
	for h := range 24 {
		times[h] = fmt.Sprintf("%sT%02d:00", domain.FormatDate(date), h)
		temps[h] = float64(h) / 2
		wind[h] = 10.0
		precip[h] = 0.2
		cloud[h] = 50.0
	}
	return map[string]any{
		"latitude":  37.45,
		"longitude": -122.18,
		"timezone":  "America/Los_Angeles",
		"hourly_units": map[string]string{
			"time": "iso8601", "temperature_2m": "°C", "wind_speed_10m": "km/h",
			"precipitation": "mm", "cloud_cover": "%",
		},
		"hourly": map[string]any{
			"time":           times,
			"temperature_2m": temps,
			"wind_speed_10m": wind,
			"precipitation":  precip,
			"cloud_cover":    cloud,
		},
	}
}

func writeBody(t *testing.T, w http.ResponseWriter, body any) {
	t.Helper()
	w.Header().Set(headerContentType, contentTypeJSON)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestClient_FetchArchivalDay_Success(t *testing.T) {
	ingested := time.Date(2025, 1, 10, 3, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(ingested))
	defer domain.SetClock(nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/archive", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "37.453", q.Get("latitude"))
		assert.Equal(t, "-122.1817", q.Get("longitude"))
		assert.Equal(t, "2025-01-02", q.Get("start_date"))
		assert.Equal(t, "2025-01-02", q.Get("end_date"))
		assert.Equal(t, "temperature_2m,wind_speed_10m,precipitation,cloud_cover", q.Get("hourly"))
		assert.Equal(t, "auto", q.Get("timezone"))
		assert.Equal(t, "celsius", q.Get("temperature_unit"))
		assert.Equal(t, "kmh", q.Get("wind_speed_unit"))
		assert.Equal(t, "mm", q.Get("precipitation_unit"))
		writeBody(t, w, archiveBody(testDate))
	}))
	defer srv.Close()

	batch, err := testClient(srv.URL, 3).FetchArchivalDay(context.Background(), testLoc, testDate)
	require.NoError(t, err)
	require.NoError(t, batch.Validate())

	assert.Equal(t, testLoc, batch.Location)
	assert.Len(t, batch.Hours, 24)
	assert.InDelta(t, 7.5, batch.Hours[15].TemperatureC, 1e-9)
	assert.InDelta(t, 10.0, batch.Hours[15].WindSpeedKmh, 1e-9)
	assert.Equal(t, ingested, batch.Hours[0].IngestedAt)
}

func TestClient_FetchArchivalHour(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeBody(t, w, archiveBody(testDate))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 3)
	obs, err := c.FetchArchivalHour(context.Background(), testLoc, testDate, 9)
	require.NoError(t, err)
	assert.Equal(t, 9, obs.Hour)
	assert.Equal(t, testDate, obs.Date)
	assert.InDelta(t, 4.5, obs.TemperatureC, 1e-9)

	_, err = c.FetchArchivalHour(context.Background(), testLoc, testDate, 24)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

// unpublishedBody is an archive payload for a day the archive has not filled
// in yet: every value is null.
func unpublishedBody(date time.Time) map[string]any {
	body := archiveBody(date)
	hourly := body["hourly"].(map[string]any)
	for _, key := range []string{"temperature_2m", "wind_speed_10m", "precipitation", "cloud_cover"} {
		hourly[key] = make([]any, 24)
	}
	return body
}

func TestClient_UnpublishedDayUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeBody(t, w, unpublishedBody(testDate))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 2)
	obs, err := c.FetchArchivalHour(context.Background(), testLoc, testDate, 13)
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "malformed archive response")
	assert.Zero(t, obs)
	assert.Equal(t, int32(2), calls.Load())

	_, err = c.FetchArchivalDay(context.Background(), testLoc, testDate)
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestClient_FetchArchivalHour_HourAllNull(t *testing.T) {
	body := archiveBody(testDate)
	hourly := body["hourly"].(map[string]any)
	for _, key := range []string{"temperature_2m", "wind_speed_10m", "precipitation", "cloud_cover"} {
		hourly[key].([]any)[13] = nil
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeBody(t, w, body)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 1)
	_, err := c.FetchArchivalHour(context.Background(), testLoc, testDate, 13)
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "2025-01-02 13:00 are all null")

	obs, err := c.FetchArchivalHour(context.Background(), testLoc, testDate, 12)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, obs.TemperatureC, 1e-9)

	batch, err := c.FetchArchivalDay(context.Background(), testLoc, testDate)
	require.NoError(t, err)
	assert.Zero(t, batch.Hours[13].TemperatureC)
}

func TestClient_FetchCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		assert.Equal(t, "temperature_2m,wind_speed_10m,precipitation,cloud_cover", r.URL.Query().Get("current"))
		writeBody(t, w, map[string]any{
			"current_units": map[string]string{
				"temperature_2m": "°F", "windspeed_10m": "m/s", "precipitation": "inch", "cloudcover": "%",
			},
			"current": map[string]any{
				"time":           "2025-06-15T14:15",
				"temperature_2m": 212.0,
				"windspeed_10m":  10.0,
				"precipitation":  1.0,
				"cloudcover":     nil,
			},
		})
	}))
	defer srv.Close()

	obs, err := testClient(srv.URL, 3).FetchCurrent(context.Background(), testLoc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), obs.Date)
	assert.Equal(t, 14, obs.Hour)
	assert.InDelta(t, 100.0, obs.TemperatureC, 1e-9)
	assert.InDelta(t, 36.0, obs.WindSpeedKmh, 1e-9)
	assert.InDelta(t, 25.4, obs.PrecipitationMm, 1e-9)
	assert.Zero(t, obs.CloudCoverPct)
}

func TestClient_RetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeBody(t, w, archiveBody(testDate))
	}))
	defer srv.Close()

	batch, err := testClient(srv.URL, 3).FetchArchivalDay(context.Background(), testLoc, testDate)
	require.NoError(t, err)
	assert.Len(t, batch.Hours, 24)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).FetchArchivalDay(context.Background(), testLoc, testDate)
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_BadRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"Parameter 'start_date' is out of allowed range"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).FetchArchivalDay(context.Background(), testLoc, testDate)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "out of allowed range")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RateLimitedHonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeBody(t, w, archiveBody(testDate))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 2)
	start := time.Now()
	_, err := c.FetchArchivalDay(context.Background(), testLoc, testDate)
	require.NoError(t, err)
	// Retry-After of 1s is capped at maxBackoff.
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_MalformedRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			_, _ = w.Write([]byte(`{not json`))
		case 2:
			body := archiveBody(testDate)
			hourly := body["hourly"].(map[string]any)
			hourly["time"] = hourly["time"].([]string)[:23]
			writeBody(t, w, body)
		default:
			writeBody(t, w, archiveBody(testDate))
		}
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).FetchArchivalDay(context.Background(), testLoc, testDate)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_MalformedExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeBody(t, w, archiveBody(testDate.AddDate(0, 0, 1)))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 2).FetchArchivalDay(context.Background(), testLoc, testDate)
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "malformed archive response")
}

func TestClient_NetworkErrorUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := testClient(url, 2).FetchArchivalDay(context.Background(), testLoc, testDate)
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestClient_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 3)
	c.backoff = time.Minute
	c.maxBackoff = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.FetchArchivalDay(ctx, testLoc, testDate)
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 3)
	for range 2 {
		_, err := c.FetchArchivalDay(context.Background(), testLoc, testDate)
		require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	}
	// Six consecutive failures trip the breaker; the next call never reaches the server.
	before := calls.Load()
	_, err := c.FetchArchivalDay(context.Background(), testLoc, testDate)
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, before, calls.Load())
}

func TestBackoffFor(t *testing.T) {
	c := &Client{backoff: time.Second, maxBackoff: 5 * time.Second}
	assert.Equal(t, time.Second, c.backoffFor(0, nil))
	assert.Equal(t, 2*time.Second, c.backoffFor(1, nil))
	assert.Equal(t, 4*time.Second, c.backoffFor(2, nil))
	assert.Equal(t, 5*time.Second, c.backoffFor(3, nil))
	assert.Equal(t, 3*time.Second, c.backoffFor(0, &statusError{code: 429, retryAfter: 3 * time.Second}))
	assert.Equal(t, 5*time.Second, c.backoffFor(0, &statusError{code: 429, retryAfter: time.Hour}))
}
