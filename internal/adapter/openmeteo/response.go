package openmeteo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// Open-Meteo reports local times without an offset.
const timeLayout = "2006-01-02T15:04"

// variable is one requested weather variable: its canonical key, the older
// key spellings the API has used, and the conversion into the domain unit.
type variable struct {
	key     string
	aliases []string
	convert func(v float64, unit string) (float64, error)
}

const (
	varTemperature = iota
	varWindSpeed
	varPrecipitation
	varCloudCover
)

var variables = [...]variable{
	varTemperature:   {key: "temperature_2m", convert: toCelsius},
	varWindSpeed:     {key: "wind_speed_10m", aliases: []string{"windspeed_10m"}, convert: toKmh},
	varPrecipitation: {key: "precipitation", convert: toMillimetres},
	varCloudCover:    {key: "cloud_cover", aliases: []string{"cloudcover"}, convert: toPercent},
}

func variableList() string {
	keys := make([]string, len(variables))
	for i, v := range variables {
		keys[i] = v.key
	}
	return strings.Join(keys, ",")
}

// lookup finds the raw value for v under its canonical key or an alias,
// returning the key it was found under.
func (v variable) lookup(m map[string]json.RawMessage) (json.RawMessage, string, bool) {
	if raw, ok := m[v.key]; ok {
		return raw, v.key, true
	}
	for _, alias := range v.aliases {
		if raw, ok := m[alias]; ok {
			return raw, alias, true
		}
	}
	return nil, "", false
}

type archiveResponse struct {
	Timezone    string                     `json:"timezone"`
	HourlyUnits map[string]string          `json:"hourly_units"`
	Hourly      map[string]json.RawMessage `json:"hourly"`
}

type forecastResponse struct {
	Timezone     string                     `json:"timezone"`
	CurrentUnits map[string]string          `json:"current_units"`
	Current      map[string]json.RawMessage `json:"current"`
}

func decodeArchive(body []byte) (archiveResponse, error) {
	var r archiveResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return r, fmt.Errorf("decode archive response: %w", err)
	}
	if r.Hourly == nil {
		return r, errors.New("response has no hourly block")
	}
	return r, nil
}

func decodeForecast(body []byte) (forecastResponse, error) {
	var r forecastResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return r, fmt.Errorf("decode forecast response: %w", err)
	}
	if r.Current == nil {
		return r, errors.New("response has no current block")
	}
	return r, nil
}

// nullCounts records, per hour, how many variables were null and replaced
// by zero.
type nullCounts [domain.HoursPerDay]int

func (n nullCounts) total() int {
	t := 0
	for _, c := range n {
		t += c
	}
	return t
}

// allNull reports whether every variable was null at hour h.
func (n nullCounts) allNull(h int) bool {
	return n[h] == len(variables)
}

// dailyBatch normalizes an archive response for a single requested date into
// a validated 24-hour batch. Isolated nulls default to zero and are counted;
// a variable with no value for the whole day is an error, since the archive
// has not published that day yet.
func (r archiveResponse) dailyBatch(loc domain.Location, date, ingestedAt time.Time) (domain.DailyBatch, nullCounts, error) {
	var nulls nullCounts
	rawTimes, ok := r.Hourly["time"]
	if !ok {
		return domain.DailyBatch{}, nulls, errors.New("hourly.time missing")
	}
	var times []string
	if err := json.Unmarshal(rawTimes, &times); err != nil {
		return domain.DailyBatch{}, nulls, fmt.Errorf("decode hourly.time: %w", err)
	}
	if len(times) != domain.HoursPerDay {
		return domain.DailyBatch{}, nulls, fmt.Errorf("got %d hourly entries for %s, want %d",
			len(times), domain.FormatDate(date), domain.HoursPerDay)
	}

	var series [len(variables)][]float64
	for i, v := range variables {
		raw, key, ok := v.lookup(r.Hourly)
		if !ok {
			return domain.DailyBatch{}, nulls, fmt.Errorf("hourly.%s missing", v.key)
		}
		var values []*float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return domain.DailyBatch{}, nulls, fmt.Errorf("decode hourly.%s: %w", key, err)
		}
		if len(values) != len(times) {
			return domain.DailyBatch{}, nulls, fmt.Errorf("hourly.%s has %d values for %d times", key, len(values), len(times))
		}
		out := make([]float64, len(values))
		missing := 0
		for j, p := range values {
			if p == nil {
				nulls[j]++
				missing++
				continue
			}
			conv, err := v.convert(*p, r.HourlyUnits[key])
			if err != nil {
				return domain.DailyBatch{}, nulls, fmt.Errorf("hourly.%s: %w", key, err)
			}
			out[j] = conv
		}
		if missing == len(values) {
			return domain.DailyBatch{}, nulls, fmt.Errorf("hourly.%s has no values for %s", key, domain.FormatDate(date))
		}
		series[i] = out
	}

	batch := domain.DailyBatch{Location: loc, Date: date, Hours: make([]domain.HourlyObservation, len(times))}
	for h, ts := range times {
		t, err := time.Parse(timeLayout, ts)
		if err != nil {
			return domain.DailyBatch{}, nulls, fmt.Errorf("hourly.time[%d]: %w", h, err)
		}
		if !domain.DateOf(t).Equal(date) || t.Hour() != h {
			return domain.DailyBatch{}, nulls, fmt.Errorf("hourly.time[%d] is %s, want %sT%02d:00",
				h, ts, domain.FormatDate(date), h)
		}
		batch.Hours[h] = domain.HourlyObservation{
			Location:        loc.Name,
			Date:            date,
			Hour:            h,
			TemperatureC:    series[varTemperature][h],
			WindSpeedKmh:    series[varWindSpeed][h],
			PrecipitationMm: series[varPrecipitation][h],
			CloudCoverPct:   series[varCloudCover][h],
			IngestedAt:      ingestedAt,
		}
	}
	if err := batch.Validate(); err != nil {
		// The payload is at fault here, not the caller, so the cause is not wrapped.
		return domain.DailyBatch{}, nulls, fmt.Errorf("invalid batch: %v", err)
	}
	return batch, nulls, nil
}

// observation normalizes the current block of a forecast response. A block
// with every variable null is an error.
func (r forecastResponse) observation(name string, ingestedAt time.Time) (domain.HourlyObservation, int, error) {
	rawTime, ok := r.Current["time"]
	if !ok {
		return domain.HourlyObservation{}, 0, errors.New("current.time missing")
	}
	var ts string
	if err := json.Unmarshal(rawTime, &ts); err != nil {
		return domain.HourlyObservation{}, 0, fmt.Errorf("decode current.time: %w", err)
	}
	t, err := time.Parse(timeLayout, ts)
	if err != nil {
		return domain.HourlyObservation{}, 0, fmt.Errorf("current.time: %w", err)
	}

	var vals [len(variables)]float64
	defaulted := 0
	for i, v := range variables {
		raw, key, ok := v.lookup(r.Current)
		if !ok {
			return domain.HourlyObservation{}, 0, fmt.Errorf("current.%s missing", v.key)
		}
		var p *float64
		if err := json.Unmarshal(raw, &p); err != nil {
			return domain.HourlyObservation{}, 0, fmt.Errorf("decode current.%s: %w", key, err)
		}
		if p == nil {
			defaulted++
			continue
		}
		if vals[i], err = v.convert(*p, r.CurrentUnits[key]); err != nil {
			return domain.HourlyObservation{}, 0, fmt.Errorf("current.%s: %w", key, err)
		}
	}
	if defaulted == len(variables) {
		return domain.HourlyObservation{}, 0, fmt.Errorf("current block for %s has no values", ts)
	}

	return domain.HourlyObservation{
		Location:        name,
		Date:            domain.DateOf(t),
		Hour:            t.Hour(),
		TemperatureC:    vals[varTemperature],
		WindSpeedKmh:    vals[varWindSpeed],
		PrecipitationMm: vals[varPrecipitation],
		CloudCoverPct:   vals[varCloudCover],
		IngestedAt:      ingestedAt,
	}, defaulted, nil
}

// errorResponse is the body Open-Meteo returns on a rejected request.
type errorResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// errorReason extracts a short failure reason from an error body.
func errorReason(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Reason != "" {
		return er.Reason
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "empty response body"
	}
	return s
}
