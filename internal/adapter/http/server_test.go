package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/weather-history-etl/internal/adapter/http"
	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/lookup"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockLookup struct {
	point     lookup.PointResult
	series    domain.YearSeries
	err       error
	gotYears  int
	gotHour   int
	gotDate   time.Time
	gotLocate string
}

func (m *mockLookup) Locations() []domain.Location {
	return []domain.Location{{Name: "Austin, TX", Latitude: 30.27, Longitude: -97.74}}
}

func (m *mockLookup) LookupPoint(_ context.Context, location string, date time.Time, hour int) (lookup.PointResult, error) {
	m.gotLocate, m.gotDate, m.gotHour = location, date, hour
	return m.point, m.err
}

func (m *mockLookup) LookupSeries(_ context.Context, location string, date time.Time, hour, years int) (domain.YearSeries, error) {
	m.gotLocate, m.gotDate, m.gotHour, m.gotYears = location, date, hour, years
	return m.series, m.err
}

func newTestServer(readyErr error, svc *mockLookup) *httpadapter.Server {
	if svc == nil {
		svc = &mockLookup{}
	}
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, svc, slog.Default())
}

func get(t *testing.T, srv http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestHealthzReturns200(t *testing.T) {
	rec, body := get(t, newTestServer(nil, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec, body := get(t, newTestServer(nil, nil), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec, body := get(t, newTestServer(fmt.Errorf("catalog not open"), nil), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "catalog not open", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestLocations(t *testing.T) {
	rec, body := get(t, newTestServer(nil, nil), "/api/v1/locations")
	assert.Equal(t, http.StatusOK, rec.Code)
	locs, ok := body["locations"].([]any)
	require.True(t, ok)
	require.Len(t, locs, 1)
	assert.Equal(t, "Austin, TX", locs[0].(map[string]any)["name"])
}

func TestWeather_Resolved(t *testing.T) {
	svc := &mockLookup{point: lookup.PointResult{
		Location: "Austin, TX", Date: "2024-07-04", Hour: 15, Resolved: true, Origin: domain.OriginSource,
		Observation: &domain.HourlyObservation{Location: "Austin, TX", Hour: 15, TemperatureC: 35.2},
	}}
	rec, body := get(t, newTestServer(nil, svc), "/api/v1/weather?location=Austin,+TX&date=2024-07-04&hour=15")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["resolved"])
	assert.Equal(t, "Austin, TX", svc.gotLocate)
	assert.Equal(t, 15, svc.gotHour)
	assert.Equal(t, "2024-07-04", domain.FormatDate(svc.gotDate))
}

func TestWeather_UnresolvedIs200(t *testing.T) {
	svc := &mockLookup{point: lookup.PointResult{Resolved: false, Origin: domain.OriginUnavailable, Error: "source unavailable"}}
	rec, body := get(t, newTestServer(nil, svc), "/api/v1/weather?location=Austin&date=2024-07-04&hour=1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["resolved"])
	assert.Equal(t, "unavailable", body["origin"])
}

func TestWeather_BadRequests(t *testing.T) {
	tests := []struct {
		name  string
		query string
		err   error
	}{
		{"bad date", "location=Austin&date=07/04/2024&hour=1", nil},
		{"bad hour", "location=Austin&date=2024-07-04&hour=noon", nil},
		{"missing hour", "location=Austin&date=2024-07-04", nil},
		{"service rejects", "location=Nowhere&date=2024-07-04&hour=1", fmt.Errorf("%w: unknown location", domain.ErrInvalidRequest)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := get(t, newTestServer(nil, &mockLookup{err: tt.err}), "/api/v1/weather?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHistory(t *testing.T) {
	d2025, _ := domain.ParseDate("2025-06-01")
	d2024, _ := domain.ParseDate("2024-06-01")
	svc := &mockLookup{series: domain.YearSeries{
		Location: "Austin, TX", Date: d2025, Hour: 12, YearsBack: 2,
		Slots: []domain.YearSlot{
			{Year: 2025, Date: d2025, Origin: domain.OriginStore, Observation: &domain.HourlyObservation{TemperatureC: 30}},
			{Year: 2024, Date: d2024, Origin: domain.OriginFallback, Observation: &domain.HourlyObservation{TemperatureC: 29}},
		},
		Summary: &domain.SeriesSummary{Resolved: 2},
	}}
	rec, body := get(t, newTestServer(nil, svc), "/api/v1/history?location=Austin&date=2025-06-01&hour=12&years=2")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, svc.gotYears)
	slots, ok := body["slots"].([]any)
	require.True(t, ok)
	require.Len(t, slots, 2)
	first := slots[0].(map[string]any)
	assert.Equal(t, "2025-06-01", first["date"])
	assert.Equal(t, "store", first["origin"])
	assert.Equal(t, "fallback", slots[1].(map[string]any)["origin"])
}

func TestHistory_DefaultYears(t *testing.T) {
	svc := &mockLookup{}
	rec, _ := get(t, newTestServer(nil, svc), "/api/v1/history?location=Austin&date=2025-06-01&hour=12")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, svc.gotYears)
}

func TestHistory_InternalError(t *testing.T) {
	svc := &mockLookup{err: fmt.Errorf("boom")}
	rec, body := get(t, newTestServer(nil, svc), "/api/v1/history?location=Austin&date=2025-06-01&hour=12")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", body["error"])
}
