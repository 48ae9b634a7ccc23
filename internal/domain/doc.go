// Package domain models hourly weather observations for a fixed set of
// configured locations and the partition layout they are stored under.
//
// # Data Source
//
// Observations come from the Open-Meteo archive API (historical hours) and
// forecast API (current conditions). Both are keyed by latitude/longitude;
// locations are referenced by their configured name everywhere else.
//
// # Units
//
//	temperature    °C
//	wind speed     km/h (10 m)
//	precipitation  mm
//	cloud cover    % (0–100)
//
// # Dates and Hours
//
// A date is a calendar day represented as a UTC-midnight [time.Time]. The
// hour (0–23) is the location-local hour reported by the source, so a
// DailyBatch always holds the 24 local hours of one local day.
//
// # Partitions
//
// A DailyBatch maps to exactly one partition:
//
//	location=<normalized>/year=YYYY/month=MM/day=DD/weather_data_YYYY-MM-DD.parquet
//
// The normalized location replaces each run of non-alphanumeric characters
// with a single underscore ("Menlo Park, CA" -> "Menlo_Park_CA"). Config
// loading rejects locations whose normalized names collide, so the mapping
// from (location, date) to path is a bijection. See [KeyFor].
//
// # Leap Days
//
// Multi-year lookups map a month/day onto each earlier year. February 29
// has no counterpart in non-leap years and resolves to February 28 of that
// year; the slot is flagged as substituted. See [SameDayInYear].
package domain
