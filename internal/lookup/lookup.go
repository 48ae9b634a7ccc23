// Package lookup answers point and multi-year series queries. Series years
// are served from stored partitions first and fall back to the weather
// source per year.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/observability"
)

// DefaultMaxYears bounds yearsBack when Options.MaxYears is unset.
const DefaultMaxYears = 10

// Source answers lookups the store cannot.
type Source interface {
	FetchCurrent(ctx context.Context, loc domain.Location) (domain.HourlyObservation, error)
	FetchArchivalHour(ctx context.Context, loc domain.Location, date time.Time, hour int) (domain.HourlyObservation, error)
}

// PartitionReader queries stored partitions.
type PartitionReader interface {
	Query(ctx context.Context, loc domain.Location, date time.Time, hour int) (domain.HourlyObservation, error)
}

// Options tunes the service.
type Options struct {
	Concurrency int
	MaxYears    int
}

// Service resolves point and series lookups.
type Service struct {
	source    Source
	reader    PartitionReader
	locations []domain.Location
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Service.
func New(src Source, reader PartitionReader, locations []domain.Location, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxYears < 1 {
		opts.MaxYears = DefaultMaxYears
	}
	return &Service{
		source:    src,
		reader:    reader,
		locations: locations,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// Locations returns the configured locations.
func (s *Service) Locations() []domain.Location {
	return s.locations
}

// MaxYears is the largest accepted yearsBack.
func (s *Service) MaxYears() int {
	return s.opts.MaxYears
}

func (s *Service) location(name string) (domain.Location, error) {
	norm := domain.NormalizeLocationName(name)
	for _, loc := range s.locations {
		if loc.Name == name || (norm != "" && loc.PartitionName() == norm) {
			return loc, nil
		}
	}
	return domain.Location{}, fmt.Errorf("%w: unknown location %q", domain.ErrInvalidRequest, name)
}

// PointResult is the outcome of a single-hour lookup. An unresolved result
// carries the source failure in Error.
type PointResult struct {
	Location    string                    `json:"location"`
	Date        string                    `json:"date"`
	Hour        int                       `json:"hour"`
	Resolved    bool                      `json:"resolved"`
	Origin      domain.Origin             `json:"origin"`
	Observation *domain.HourlyObservation `json:"observation,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

// LookupPoint returns the observation at date and hour. The store is not
// consulted.
//
// "Today" is the UTC date of the service clock, while observation dates and
// hours are local to the location. A date equal to the UTC date is answered
// from current conditions; any earlier date, including a location's local
// today once UTC has moved past it, goes to the archive. The archive may
// not have published that day yet, in which case the result is unresolved.
func (s *Service) LookupPoint(ctx context.Context, locationName string, date time.Time, hour int) (PointResult, error) {
	loc, err := s.location(locationName)
	if err != nil {
		return PointResult{}, err
	}
	if !domain.ValidHour(hour) {
		return PointResult{}, fmt.Errorf("%w: hour %d out of range 0-23", domain.ErrInvalidRequest, hour)
	}
	date = domain.DateOf(date)
	today := domain.Today()
	if date.After(today) {
		return PointResult{}, fmt.Errorf("%w: date %s is in the future", domain.ErrInvalidRequest, domain.FormatDate(date))
	}

	res := PointResult{Location: loc.Name, Date: domain.FormatDate(date), Hour: hour}

	var obs domain.HourlyObservation
	if date.Equal(today) {
		obs, err = s.source.FetchCurrent(ctx, loc)
	} else {
		obs, err = s.source.FetchArchivalHour(ctx, loc, date, hour)
	}
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			return PointResult{}, err
		}
		s.logger.Warn("point lookup unresolved", "location", loc.Name, "date", res.Date, "hour", hour, "error", err)
		res.Origin = domain.OriginUnavailable
		res.Error = err.Error()
		return res, nil
	}
	res.Resolved = true
	res.Origin = domain.OriginSource
	res.Observation = &obs
	return res, nil
}

// LookupSeries resolves the same month, day and hour for yearsBack years
// ending at date's year. Slots are ordered most recent year first.
func (s *Service) LookupSeries(ctx context.Context, locationName string, date time.Time, hour, yearsBack int) (domain.YearSeries, error) {
	loc, err := s.location(locationName)
	if err != nil {
		return domain.YearSeries{}, err
	}
	if !domain.ValidHour(hour) {
		return domain.YearSeries{}, fmt.Errorf("%w: hour %d out of range 0-23", domain.ErrInvalidRequest, hour)
	}
	if yearsBack < 1 || yearsBack > s.opts.MaxYears {
		return domain.YearSeries{}, fmt.Errorf("%w: years %d out of range 1-%d", domain.ErrInvalidRequest, yearsBack, s.opts.MaxYears)
	}
	date = domain.DateOf(date)
	today := domain.Today()

	slots := make([]domain.YearSlot, yearsBack)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := range slots {
		year := date.Year() - i
		candidate, substituted := domain.SameDayInYear(date, year)
		slots[i] = domain.YearSlot{Year: year, Date: candidate, Substituted: substituted}
		if candidate.After(today) {
			slots[i].Origin = domain.OriginUnavailable
			slots[i].Error = "date is in the future"
			continue
		}
		g.Go(func() error {
			s.resolveSlot(gctx, loc, hour, &slots[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, sl := range slots {
		s.metrics.LookupSlots.WithLabelValues(string(sl.Origin)).Inc()
	}

	return domain.YearSeries{
		Location:  loc.Name,
		Date:      date,
		Hour:      hour,
		YearsBack: yearsBack,
		Slots:     slots,
		Summary:   Summarize(slots),
	}, nil
}

// resolveSlot fills one year: store first, then the source for that year only.
func (s *Service) resolveSlot(ctx context.Context, loc domain.Location, hour int, slot *domain.YearSlot) {
	day := domain.FormatDate(slot.Date)

	obs, err := s.reader.Query(ctx, loc, slot.Date, hour)
	if err == nil {
		slot.Observation = &obs
		slot.Origin = domain.OriginStore
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.metrics.Fallbacks.WithLabelValues("not_found").Inc()
		s.logger.Debug("partition not stored, falling back to source",
			"location", loc.Name, "date", day, "year", slot.Year)
	case errors.Is(err, domain.ErrCatalogUnavailable):
		s.metrics.Fallbacks.WithLabelValues("catalog_unavailable").Inc()
		s.logger.Warn("catalog unavailable, falling back to source",
			"reason", "catalog_unavailable", "location", loc.Name, "date", day, "year", slot.Year, "error", err)
	default:
		s.metrics.Fallbacks.WithLabelValues("error").Inc()
		s.logger.Warn("partition query failed, falling back to source",
			"location", loc.Name, "date", day, "year", slot.Year, "error", err)
	}

	obs, err = s.source.FetchArchivalHour(ctx, loc, slot.Date, hour)
	if err != nil {
		s.logger.Warn("year unavailable", "location", loc.Name, "date", day, "year", slot.Year, "error", err)
		slot.Origin = domain.OriginUnavailable
		slot.Error = err.Error()
		return
	}
	slot.Observation = &obs
	slot.Origin = domain.OriginFallback
}
