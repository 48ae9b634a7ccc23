package openmeteo

import (
	"fmt"
	"strings"
)

// Unit strings as Open-Meteo spells them in hourly_units/current_units.
// An empty unit means the API omitted it and the requested unit applies.

func toCelsius(v float64, unit string) (float64, error) {
	switch strings.ToLower(unit) {
	case "", "°c", "c", "celsius":
		return v, nil
	case "°f", "f", "fahrenheit":
		return (v - 32) * 5 / 9, nil
	}
	return 0, fmt.Errorf("unknown temperature unit %q", unit)
}

func toKmh(v float64, unit string) (float64, error) {
	switch strings.ToLower(unit) {
	case "", "km/h", "kmh":
		return v, nil
	case "m/s", "ms":
		return v * 3.6, nil
	case "mph", "mp/h":
		return v * 1.609344, nil
	case "kn", "kt", "knots":
		return v * 1.852, nil
	}
	return 0, fmt.Errorf("unknown wind speed unit %q", unit)
}

func toMillimetres(v float64, unit string) (float64, error) {
	switch strings.ToLower(unit) {
	case "", "mm":
		return v, nil
	case "inch", "in":
		return v * 25.4, nil
	}
	return 0, fmt.Errorf("unknown precipitation unit %q", unit)
}

func toPercent(v float64, unit string) (float64, error) {
	switch unit {
	case "", "%":
		return v, nil
	}
	return 0, fmt.Errorf("unknown cloud cover unit %q", unit)
}
