package domain

import "time"

// Origin records where a YearSlot's observation came from.
type Origin string

const (
	OriginStore       Origin = "store"
	OriginFallback    Origin = "fallback"
	OriginUnavailable Origin = "unavailable"
	// OriginSource marks a point lookup answered by the source directly.
	OriginSource Origin = "source"
)

// YearSlot is one year's entry in a YearSeries. Date is the date actually
// looked up for that year; Substituted is set when February 29 was mapped
// onto February 28.
type YearSlot struct {
	Year        int                `json:"year"`
	Date        time.Time          `json:"date"`
	Substituted bool               `json:"substituted,omitempty"`
	Observation *HourlyObservation `json:"observation,omitempty"`
	Origin      Origin             `json:"origin"`
	Error       string             `json:"error,omitempty"`
}

// Resolved reports whether the slot holds an observation.
func (s YearSlot) Resolved() bool {
	return s.Observation != nil && s.Origin != OriginUnavailable
}

// YearSeries is the same calendar day and hour across consecutive years,
// most recent year first.
type YearSeries struct {
	Location  string         `json:"location"`
	Date      time.Time      `json:"date"`
	Hour      int            `json:"hour"`
	YearsBack int            `json:"years_back"`
	Slots     []YearSlot     `json:"slots"`
	Summary   *SeriesSummary `json:"summary,omitempty"`
}

// Stats is the minimum, maximum and mean of one variable.
type Stats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// SeriesSummary aggregates the resolved observations of a YearSeries.
// Value fields are only meaningful when Resolved > 0.
type SeriesSummary struct {
	Resolved     int     `json:"resolved"`
	FromStore    int     `json:"from_store"`
	FromFallback int     `json:"from_fallback"`
	Unavailable  int     `json:"unavailable"`
	MinTempC     float64 `json:"min_temperature_celsius"`
	MaxTempC     float64 `json:"max_temperature_celsius"`
	MeanTempC    float64 `json:"mean_temperature_celsius"`
	MedianTempC  float64 `json:"median_temperature_celsius"`
	// TrendCPerYear is the least-squares slope of temperature against year.
	// Zero with fewer than two resolved years.
	TrendCPerYear float64 `json:"trend_celsius_per_year"`

	WindSpeedKmh         Stats   `json:"wind_speed_kmh"`
	PrecipitationMm      Stats   `json:"precipitation_mm"`
	PrecipitationTotalMm float64 `json:"precipitation_total_mm"`
	CloudCoverPct        Stats   `json:"cloud_coverage_percent"`
}
