package lookup

import (
	"math"
	"slices"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// Summarize aggregates the resolved slots of a series. Unavailable slots
// only count toward Unavailable.
func Summarize(slots []domain.YearSlot) *domain.SeriesSummary {
	sum := &domain.SeriesSummary{}

	var years, temps, wind, precip, cloud []float64
	for _, sl := range slots {
		switch sl.Origin {
		case domain.OriginStore:
			sum.FromStore++
		case domain.OriginFallback:
			sum.FromFallback++
		default:
			sum.Unavailable++
		}
		if !sl.Resolved() {
			continue
		}
		o := sl.Observation
		years = append(years, float64(sl.Year))
		temps = append(temps, o.TemperatureC)
		wind = append(wind, o.WindSpeedKmh)
		precip = append(precip, o.PrecipitationMm)
		cloud = append(cloud, o.CloudCoverPct)
	}

	sum.Resolved = len(temps)
	if sum.Resolved == 0 {
		return sum
	}

	t := statsOf(temps)
	sum.MinTempC, sum.MaxTempC, sum.MeanTempC = t.Min, t.Max, t.Mean
	sum.MedianTempC = median(temps)
	sum.TrendCPerYear = slope(years, temps)

	sum.WindSpeedKmh = statsOf(wind)
	sum.PrecipitationMm = statsOf(precip)
	sum.PrecipitationTotalMm = sumOf(precip)
	sum.CloudCoverPct = statsOf(cloud)
	return sum
}

// statsOf expects at least one value.
func statsOf(vs []float64) domain.Stats {
	s := domain.Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range vs {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = sumOf(vs) / float64(len(vs))
	return s
}

func sumOf(vs []float64) float64 {
	total := 0.0
	for _, v := range vs {
		total += v
	}
	return total
}

// median averages the two middle values of an even count. vs is not modified.
func median(vs []float64) float64 {
	sorted := slices.Clone(vs)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// slope is the least-squares slope of ys against xs.
func slope(xs, ys []float64) float64 {
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	var sx, sy, sxx, sxy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxx += xs[i] * xs[i]
		sxy += xs[i] * ys[i]
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}
