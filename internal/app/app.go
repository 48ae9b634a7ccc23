// Package app wires the storage, source and query components shared by the
// binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/weather-history-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/weather-history-etl/internal/adapter/openmeteo"
	"github.com/couchcryptid/weather-history-etl/internal/config"
	"github.com/couchcryptid/weather-history-etl/internal/lookup"
	"github.com/couchcryptid/weather-history-etl/internal/observability"
	"github.com/couchcryptid/weather-history-etl/internal/partition"
	"github.com/couchcryptid/weather-history-etl/internal/pipeline"
	"github.com/couchcryptid/weather-history-etl/internal/quality"
)

// Components are the long-lived collaborators built from a Config.
type Components struct {
	Source *openmeteo.Client
	Store  objectstore.Store
	Writer *partition.Writer
	Reader *partition.Reader

	cfg     *config.Config
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Open builds the source client, object store, partition writer and reader.
func Open(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*Components, error) {
	store, err := objectstore.New(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}

	reader, err := partition.NewReader(store, partition.CatalogOptions{
		MemoryLimit: cfg.Store.DuckDBMemoryLimit,
		S3:          cfg.Store.Backend == "s3",
		Region:      cfg.Store.Region,
		Endpoint:    cfg.Store.Endpoint,
	}, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("open partition reader: %w", err)
	}

	source := openmeteo.NewClient(openmeteo.Options{
		ArchiveURL:     cfg.Source.ArchiveURL,
		ForecastURL:    cfg.Source.ForecastURL,
		Timezone:       cfg.Source.Timezone,
		Timeout:        cfg.Source.Timeout,
		MaxAttempts:    cfg.Source.MaxAttempts,
		BackoffInitial: cfg.Source.BackoffInitial,
		BackoffMax:     cfg.Source.BackoffMax,
	}, metrics, logger)

	logger.Info("components ready", "store", store.URI(""), "locations", len(cfg.Locations))

	return &Components{
		Source:  source,
		Store:   store,
		Writer:  partition.NewWriter(store, metrics, logger),
		Reader:  reader,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Pipeline builds the ingestion orchestrator.
func (c *Components) Pipeline(options ...pipeline.Option) *pipeline.Pipeline {
	return pipeline.New(c.Source, c.Writer, c.cfg.Locations, pipeline.Options{
		DailyLagDays:  c.cfg.Ingest.DailyLagDays,
		BackfillDelay: c.cfg.Ingest.BackfillDelay,
		UnitTimeout:   c.cfg.Ingest.UnitTimeout,
		Concurrency:   c.cfg.Ingest.Concurrency,
		Quality:       quality.Checker{},
	}, c.logger, c.metrics, options...)
}

// Lookup builds the historical lookup service.
func (c *Components) Lookup() *lookup.Service {
	return lookup.New(c.Source, c.Reader, c.cfg.Locations, lookup.Options{
		Concurrency: c.cfg.Lookup.Concurrency,
		MaxYears:    c.cfg.Lookup.MaxYears,
	}, c.logger, c.metrics)
}

// Close releases the query engine.
func (c *Components) Close() error {
	return c.Reader.Close()
}
