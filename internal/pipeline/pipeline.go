package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/observability"
	"github.com/couchcryptid/weather-history-etl/internal/quality"
)

// Source fetches one archived day of observations for a location.
type Source interface {
	FetchArchivalDay(ctx context.Context, loc domain.Location, date time.Time) (domain.DailyBatch, error)
}

// BatchWriter persists a DailyBatch as its partition artifact.
type BatchWriter interface {
	Write(ctx context.Context, batch domain.DailyBatch) error
}

// EventPublisher announces written partitions and completed runs.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.IngestEvent) error
}

// CursorStore persists backfill progress under a caller-chosen name.
type CursorStore interface {
	Load(ctx context.Context, name string) (next time.Time, ok bool, err error)
	Save(ctx context.Context, name string, next time.Time) error
}

// Options tunes runs.
type Options struct {
	// DailyLagDays is how far behind today the daily run ingests; archive
	// data for recent days is incomplete.
	DailyLagDays int
	// BackfillDelay is the pause between consecutive backfill days.
	BackfillDelay time.Duration
	// UnitTimeout bounds one fetch-and-write unit. Units run detached from
	// run cancellation so they are never aborted halfway.
	UnitTimeout time.Duration
	// Concurrency bounds the locations ingested at once by the daily run.
	Concurrency int
	// Quality configures the checks run on every fetched batch.
	Quality quality.Checker
}

// Option configures optional collaborators.
type Option func(*Pipeline)

// WithEventPublisher publishes ingestion events through pub.
func WithEventPublisher(pub EventPublisher) Option {
	return func(p *Pipeline) { p.events = pub }
}

// WithCursorStore enables resumable backfills.
func WithCursorStore(cs CursorStore) Option {
	return func(p *Pipeline) { p.cursors = cs }
}

// Pipeline orchestrates daily and backfill ingestion: fetch a day from the
// source, check it, write its partition. Units are independent; a failed
// unit is recorded and the run continues.
type Pipeline struct {
	source    Source
	writer    BatchWriter
	events    EventPublisher
	cursors   CursorStore
	locations []domain.Location
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics
	lastRun   atomic.Pointer[time.Time]
}

// New creates a Pipeline over the configured locations.
func New(src Source, w BatchWriter, locations []domain.Location, opts Options, logger *slog.Logger, metrics *observability.Metrics, options ...Option) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.UnitTimeout <= 0 {
		opts.UnitTimeout = 2 * time.Minute
	}
	p := &Pipeline{
		source:    src,
		writer:    w,
		locations: locations,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Locations returns the configured locations.
func (p *Pipeline) Locations() []domain.Location {
	return p.locations
}

// LastRun returns when the most recent run finished, if any.
func (p *Pipeline) LastRun() (time.Time, bool) {
	t := p.lastRun.Load()
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

// location resolves a location by its configured name or its partition name.
func (p *Pipeline) location(name string) (domain.Location, error) {
	norm := domain.NormalizeLocationName(name)
	for _, loc := range p.locations {
		if loc.Name == name || (norm != "" && loc.PartitionName() == norm) {
			return loc, nil
		}
	}
	return domain.Location{}, fmt.Errorf("%w: unknown location %q", domain.ErrInvalidRequest, name)
}

// UnitFailure records one failed (location, date) unit.
type UnitFailure struct {
	Location string `json:"location"`
	Date     string `json:"date"`
	Error    string `json:"error"`
}

// ingestUnit fetches, checks and writes one location-day. It runs on a
// context detached from ctx's cancellation and bounded by UnitTimeout.
func (p *Pipeline) ingestUnit(ctx context.Context, runID, mode string, loc domain.Location, date time.Time) error {
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.UnitTimeout)
	defer cancel()

	day := domain.FormatDate(date)
	batch, err := p.source.FetchArchivalDay(uctx, loc, date)
	if err != nil {
		p.unitFailed(mode, loc, day, "fetch failed", err)
		return fmt.Errorf("fetch: %w", err)
	}

	p.inspect(mode, batch)

	if err := p.writer.Write(uctx, batch); err != nil {
		p.unitFailed(mode, loc, day, "write failed", err)
		return fmt.Errorf("write: %w", err)
	}

	p.metrics.IngestUnits.WithLabelValues(mode, "success").Inc()
	p.logger.Info("partition ingested", "run_id", runID, "mode", mode, "location", loc.Name, "date", day)

	p.publish(uctx, domain.IngestEvent{
		Type:      domain.EventPartitionWritten,
		RunID:     runID,
		Mode:      mode,
		Location:  loc.Name,
		Date:      day,
		ObjectKey: batch.Key().ObjectKey(),
	})
	return nil
}

func (p *Pipeline) unitFailed(mode string, loc domain.Location, day, msg string, err error) {
	p.metrics.IngestUnits.WithLabelValues(mode, "failure").Inc()
	p.logger.Error(msg, "mode", mode, "location", loc.Name, "date", day, "error", err,
		"source_unavailable", errors.Is(err, domain.ErrSourceUnavailable),
		"write_failed", errors.Is(err, domain.ErrIngestionWrite))
}

// inspect runs quality checks on a fetched batch. Issues are logged and
// counted; the batch is still written since the source is authoritative.
func (p *Pipeline) inspect(mode string, batch domain.DailyBatch) {
	report := p.opts.Quality.CheckBatch(batch)
	if report.Passed() {
		return
	}
	msgs := make([]string, 0, len(report.Issues))
	for _, is := range report.Issues {
		p.metrics.QualityIssues.WithLabelValues(is.Check).Inc()
		msgs = append(msgs, is.Message)
	}
	p.logger.Warn("quality issues in fetched batch",
		"mode", mode, "location", batch.Location.Name, "date", domain.FormatDate(batch.Date),
		"issues", len(report.Issues), "details", strings.Join(msgs, "; "))
}

// publish sends events when a publisher is configured. Failures are logged;
// they never fail the unit.
func (p *Pipeline) publish(ctx context.Context, events ...domain.IngestEvent) {
	if p.events == nil {
		return
	}
	now := domain.Now()
	for i := range events {
		events[i].ID = uuid.NewString()
		events[i].OccurredAt = now
	}
	if err := p.events.Publish(ctx, events...); err != nil {
		p.metrics.EventPublishErrs.Add(float64(len(events)))
		p.logger.Warn("publish ingest events failed", "count", len(events), "error", err)
	}
}

// runStarted tracks a run in metrics and returns the function that ends it.
func (p *Pipeline) runStarted(mode string) func() {
	start := time.Now()
	p.metrics.IngestRunning.Inc()
	return func() {
		p.metrics.IngestRunning.Dec()
		p.metrics.RunDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
		now := domain.Now()
		p.lastRun.Store(&now)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
