package integration_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeOpenMeteo serves archive and forecast responses. Archive temperature
// at hour h of date d is (d.Year-2000) + h/10.
type fakeOpenMeteo struct {
	mu    sync.Mutex
	calls map[string]int // archive calls by start_date
	fail  map[string]bool
}

func newFakeOpenMeteo(t *testing.T) (*fakeOpenMeteo, *httptest.Server) {
	t.Helper()
	f := &fakeOpenMeteo{calls: map[string]int{}, fail: map[string]bool{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeOpenMeteo) archiveCalls(date string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[date]
}

func (f *fakeOpenMeteo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/archive" {
		http.NotFound(w, r)
		return
	}
	day := r.URL.Query().Get("start_date")
	f.mu.Lock()
	f.calls[day]++
	fail := f.fail[day]
	f.mu.Unlock()
	if fail {
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	date, err := time.Parse(domain.DateLayout, day)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"bad start_date"}`))
		return
	}
	times := make([]string, 24)
	temps := make([]float64, 24)
	ones := make([]float64, 24)
	for h := range 24 {
		times[h] = fmt.Sprintf("%sT%02d:00", day, h)
		temps[h] = float64(date.Year()-2000) + float64(h)/10
		ones[h] = 1
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"hourly_units": map[string]string{
			"temperature_2m": "°C", "wind_speed_10m": "km/h", "precipitation": "mm", "cloud_cover": "%",
		},
		"hourly": map[string]any{
			"time":           times,
			"temperature_2m": temps,
			"wind_speed_10m": ones,
			"precipitation":  ones,
			"cloud_cover":    ones,
		},
	})
}
