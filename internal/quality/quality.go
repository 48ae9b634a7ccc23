// Package quality runs data-level checks over a day of hourly observations:
// completeness, value ranges and ingestion freshness.
package quality

import (
	"fmt"
	"slices"
	"time"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// Check names, also used as metric labels.
const (
	CheckAvailability = "availability"
	CheckCompleteness = "completeness"
	CheckRanges       = "ranges"
	CheckFreshness    = "freshness"
	CheckMetadata     = "metadata"
)

// Range is an inclusive bound on a measured value.
type Range struct {
	Min, Max float64
}

func (r Range) contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Plausible physical bounds for stored values.
var (
	TemperatureRange   = Range{-50, 60}
	WindSpeedRange     = Range{0, 300}
	PrecipitationRange = Range{0, 500}
	CloudCoverRange    = Range{0, 100}
)

// Issue is one failed check. Hour is -1 for day-level issues.
type Issue struct {
	Check   string `json:"check"`
	Hour    int    `json:"hour"`
	Message string `json:"message"`
}

// Report is the outcome of checking one location and date.
type Report struct {
	Location string    `json:"location"`
	Date     time.Time `json:"date"`
	Records  int       `json:"records"`
	Issues   []Issue   `json:"issues,omitempty"`
}

// Passed reports whether no check failed.
func (r Report) Passed() bool {
	return len(r.Issues) == 0
}

// CountByCheck tallies issues per check name.
func (r Report) CountByCheck() map[string]int {
	out := make(map[string]int)
	for _, is := range r.Issues {
		out[is.Check]++
	}
	return out
}

func (r *Report) add(check string, hour int, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Check: check, Hour: hour, Message: fmt.Sprintf(format, args...)})
}

// Checker holds the check parameters.
type Checker struct {
	// MaxAge, when positive, flags records ingested longer ago than this.
	MaxAge time.Duration
}

// CheckBatch checks a freshly fetched batch.
func (c Checker) CheckBatch(b domain.DailyBatch) Report {
	return c.Check(b.Location.Name, b.Date, b.Hours)
}

// Check runs every check over the observations of one location and date.
func (c Checker) Check(location string, date time.Time, hours []domain.HourlyObservation) Report {
	r := Report{Location: location, Date: domain.DateOf(date), Records: len(hours)}
	if len(hours) == 0 {
		r.add(CheckAvailability, -1, "no data for %s on %s", location, domain.FormatDate(date))
		return r
	}
	c.completeness(&r, hours)
	c.ranges(&r, hours)
	c.freshness(&r, hours)
	return r
}

func (c Checker) completeness(r *Report, hours []domain.HourlyObservation) {
	if len(hours) != domain.HoursPerDay {
		r.add(CheckCompleteness, -1, "expected %d records, found %d", domain.HoursPerDay, len(hours))
	}
	seen := make(map[int]int, len(hours))
	for i, h := range hours {
		seen[h.Hour]++
		if h.Hour != i && len(hours) == domain.HoursPerDay {
			r.add(CheckCompleteness, h.Hour, "hour %d stored at position %d", h.Hour, i)
		}
	}
	var missing, dup []int
	for h := range domain.HoursPerDay {
		switch n := seen[h]; {
		case n == 0:
			missing = append(missing, h)
		case n > 1:
			dup = append(dup, h)
		}
	}
	if len(missing) > 0 {
		r.add(CheckCompleteness, -1, "missing hours %v", missing)
	}
	if len(dup) > 0 {
		slices.Sort(dup)
		r.add(CheckCompleteness, -1, "duplicate hours %v", dup)
	}
}

func (c Checker) ranges(r *Report, hours []domain.HourlyObservation) {
	for _, h := range hours {
		if !domain.ValidHour(h.Hour) {
			r.add(CheckRanges, h.Hour, "hour %d outside [0, 23]", h.Hour)
		}
		checkRange(r, h.Hour, "temperature_celsius", h.TemperatureC, TemperatureRange)
		checkRange(r, h.Hour, "wind_speed_kmh", h.WindSpeedKmh, WindSpeedRange)
		checkRange(r, h.Hour, "precipitation_mm", h.PrecipitationMm, PrecipitationRange)
		checkRange(r, h.Hour, "cloud_coverage_percent", h.CloudCoverPct, CloudCoverRange)
	}
}

func checkRange(r *Report, hour int, field string, v float64, rng Range) {
	if !rng.contains(v) {
		r.add(CheckRanges, hour, "%s = %g outside [%g, %g]", field, v, rng.Min, rng.Max)
	}
}

func (c Checker) freshness(r *Report, hours []domain.HourlyObservation) {
	now := domain.Now()
	for _, h := range hours {
		switch {
		case h.IngestedAt.IsZero():
			r.add(CheckFreshness, h.Hour, "missing ingestion timestamp")
		case h.IngestedAt.Before(r.Date):
			r.add(CheckFreshness, h.Hour, "ingested at %s, before the observed date", h.IngestedAt.Format(time.RFC3339))
		case c.MaxAge > 0 && now.Sub(h.IngestedAt) > c.MaxAge:
			r.add(CheckFreshness, h.Hour, "ingested %s ago, max %s", now.Sub(h.IngestedAt).Round(time.Minute), c.MaxAge)
		}
	}
}

// Summary aggregates reports across locations and dates.
type Summary struct {
	Checked int            `json:"checked"`
	Passed  int            `json:"passed"`
	Failed  int            `json:"failed"`
	Issues  map[string]int `json:"issues_by_check"`
	Reports []Report       `json:"failed_reports,omitempty"`
	// Temperature is the distribution of every observed hourly temperature.
	Temperature Distribution `json:"temperature_celsius"`
}

// Observe records the checked hours' values in the summary's distributions.
func (s *Summary) Observe(hours []domain.HourlyObservation) {
	for _, h := range hours {
		s.Temperature.Add(h.TemperatureC)
	}
}

// Add folds one report into the summary.
func (s *Summary) Add(r Report) {
	if s.Issues == nil {
		s.Issues = make(map[string]int)
	}
	s.Checked++
	if r.Passed() {
		s.Passed++
		return
	}
	s.Failed++
	for check, n := range r.CountByCheck() {
		s.Issues[check] += n
	}
	s.Reports = append(s.Reports, r)
}

// CheckMetadata flags an artifact whose embedded location differs from the
// location of the partition it is stored under.
func (r *Report) CheckMetadata(stored, want string) {
	switch {
	case stored == "":
		r.add(CheckMetadata, -1, "artifact has no %q metadata", "location")
	case stored != want:
		r.add(CheckMetadata, -1, "artifact metadata location %q, partition is for %q", stored, want)
	}
}
