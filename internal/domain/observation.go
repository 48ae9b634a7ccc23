package domain

import (
	"fmt"
	"time"
)

// HoursPerDay is the number of hourly records in a complete DailyBatch.
const HoursPerDay = 24

// Location is a configured place that observations are collected for.
type Location struct {
	Name      string  `yaml:"name" json:"name" validate:"required"`
	Latitude  float64 `yaml:"lat" json:"lat" validate:"latitude"`
	Longitude float64 `yaml:"lon" json:"lon" validate:"longitude"`
}

// PartitionName returns the storage-safe form of the location name.
func (l Location) PartitionName() string {
	return NormalizeLocationName(l.Name)
}

// HourlyObservation is one weather reading for a location at a local date and hour.
type HourlyObservation struct {
	Location        string    `json:"location"`
	Date            time.Time `json:"date"`
	Hour            int       `json:"hour"`
	TemperatureC    float64   `json:"temperature_celsius"`
	WindSpeedKmh    float64   `json:"wind_speed_kmh"`
	PrecipitationMm float64   `json:"precipitation_mm"`
	CloudCoverPct   float64   `json:"cloud_coverage_percent"`
	IngestedAt      time.Time `json:"ingestion_timestamp"`
}

// DailyBatch holds the 24 hourly observations of one location and date.
// It is the unit of write idempotence: writing it again replaces the stored
// artifact for the same location and date.
type DailyBatch struct {
	Location Location
	Date     time.Time
	Hours    []HourlyObservation
}

// Key returns the partition the batch is stored under.
func (b DailyBatch) Key() PartitionKey {
	return KeyFor(b.Location, b.Date)
}

// Validate checks that the batch has exactly one record per hour, in hour
// order, all belonging to the batch's location and date.
func (b DailyBatch) Validate() error {
	if b.Location.Name == "" {
		return fmt.Errorf("%w: batch has no location", ErrInvalidRequest)
	}
	if b.Date.IsZero() {
		return fmt.Errorf("%w: batch has no date", ErrInvalidRequest)
	}
	if len(b.Hours) != HoursPerDay {
		return fmt.Errorf("%w: batch for %s on %s has %d hours, want %d",
			ErrInvalidRequest, b.Location.Name, FormatDate(b.Date), len(b.Hours), HoursPerDay)
	}
	date := DateOf(b.Date)
	for i, h := range b.Hours {
		if h.Hour != i {
			return fmt.Errorf("%w: batch for %s on %s has hour %d at position %d",
				ErrInvalidRequest, b.Location.Name, FormatDate(date), h.Hour, i)
		}
		if !DateOf(h.Date).Equal(date) {
			return fmt.Errorf("%w: hour %d dated %s in batch for %s",
				ErrInvalidRequest, i, FormatDate(h.Date), FormatDate(date))
		}
		if h.Location != b.Location.Name {
			return fmt.Errorf("%w: hour %d belongs to %q, batch is for %q",
				ErrInvalidRequest, i, h.Location, b.Location.Name)
		}
	}
	return nil
}

// ValidHour reports whether h is an hour of the day.
func ValidHour(h int) bool {
	return h >= 0 && h < HoursPerDay
}
