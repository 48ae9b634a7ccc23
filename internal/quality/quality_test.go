package quality

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

var testDate = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

func goodHours() []domain.HourlyObservation {
	out := make([]domain.HourlyObservation, domain.HoursPerDay)
	for h := range out {
		out[h] = domain.HourlyObservation{
			Location:        "Austin, TX",
			Date:            testDate,
			Hour:            h,
			TemperatureC:    12,
			WindSpeedKmh:    8,
			PrecipitationMm: 0,
			CloudCoverPct:   40,
			IngestedAt:      testDate.AddDate(0, 0, 7),
		}
	}
	return out
}

func TestCheck_Passes(t *testing.T) {
	r := Checker{}.Check("Austin, TX", testDate, goodHours())
	assert.True(t, r.Passed(), "%v", r.Issues)
	assert.Equal(t, 24, r.Records)
}

func TestCheck_NoData(t *testing.T) {
	r := Checker{}.Check("Austin, TX", testDate, nil)
	require.Len(t, r.Issues, 1)
	assert.Equal(t, CheckAvailability, r.Issues[0].Check)
}

func TestCheck_Completeness(t *testing.T) {
	hours := goodHours()
	hours[5].Hour = 4
	hours = hours[:23]

	r := Checker{}.Check("Austin, TX", testDate, hours)
	counts := r.CountByCheck()
	assert.Equal(t, 3, counts[CheckCompleteness], "%v", r.Issues)
}

func TestCheck_Ranges(t *testing.T) {
	hours := goodHours()
	hours[0].TemperatureC = 61
	hours[1].WindSpeedKmh = -1
	hours[2].PrecipitationMm = 501
	hours[3].CloudCoverPct = 100.5
	hours[4].TemperatureC = -50

	r := Checker{}.Check("Austin, TX", testDate, hours)
	assert.Equal(t, 4, r.CountByCheck()[CheckRanges])
}

func TestCheck_Freshness(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(testDate.AddDate(0, 0, 30)))
	defer domain.SetClock(nil)

	hours := goodHours()
	hours[0].IngestedAt = time.Time{}
	hours[1].IngestedAt = testDate.Add(-time.Hour)

	r := Checker{}.Check("Austin, TX", testDate, hours)
	assert.Equal(t, 2, r.CountByCheck()[CheckFreshness])

	r = Checker{MaxAge: 48 * time.Hour}.Check("Austin, TX", testDate, goodHours())
	assert.Equal(t, 24, r.CountByCheck()[CheckFreshness])
}

func TestSummary(t *testing.T) {
	var s Summary
	s.Add(Checker{}.Check("Austin, TX", testDate, goodHours()))
	s.Add(Checker{}.Check("Austin, TX", testDate.AddDate(0, 0, 1), nil))

	assert.Equal(t, 2, s.Checked)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Issues[CheckAvailability])
	require.Len(t, s.Reports, 1)
}

func TestReport_CheckMetadata(t *testing.T) {
	r := Report{Location: "Austin, TX", Date: testDate}
	r.CheckMetadata("Austin, TX", "Austin, TX")
	assert.True(t, r.Passed())

	r.CheckMetadata("", "Austin, TX")
	r.CheckMetadata("Chicago, IL", "Austin, TX")
	assert.Equal(t, map[string]int{CheckMetadata: 2}, r.CountByCheck())
}

func TestSummary_TemperatureDistribution(t *testing.T) {
	var s Summary
	hours := make([]domain.HourlyObservation, 0, 100)
	for i := range 100 {
		hours = append(hours, domain.HourlyObservation{TemperatureC: float64(i - 20)})
	}
	s.Observe(hours)

	assert.Equal(t, 100, s.Temperature.Count())
	p50, ok := s.Temperature.Quantile(0.5)
	require.True(t, ok)
	assert.InDelta(t, 29.5, p50, 1)
	p05, ok := s.Temperature.Quantile(0.05)
	require.True(t, ok)
	assert.InDelta(t, -15.5, p05, 1)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"temperature_celsius":{"count":100,"p05":`)
}

func TestSummary_EmptyDistribution(t *testing.T) {
	var s Summary
	_, ok := s.Temperature.Quantile(0.5)
	assert.False(t, ok)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"temperature_celsius":{"count":0}`)
}
