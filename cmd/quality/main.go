// Command quality runs data-quality checks over stored partitions for a date
// range and prints a JSON summary. It exits 1 when any partition failed.
//
// Usage:
//
//	go run ./cmd/quality -start 2025-01-01 -end 2025-01-31 [-location "Austin, TX"] [-max-age 720h]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/weather-history-etl/internal/app"
	"github.com/couchcryptid/weather-history-etl/internal/config"
	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/observability"
	"github.com/couchcryptid/weather-history-etl/internal/partition"
	"github.com/couchcryptid/weather-history-etl/internal/quality"
)

func main() {
	os.Exit(run())
}

func run() int {
	startFlag := flag.String("start", "", "first date to check (YYYY-MM-DD)")
	endFlag := flag.String("end", "", "last date to check (YYYY-MM-DD)")
	location := flag.String("location", "", "only check this location (default: all)")
	maxAge := flag.Duration("max-age", 0, "flag records ingested longer ago than this (0 disables)")
	flag.Parse()

	if *startFlag == "" || *endFlag == "" {
		flag.Usage()
		return 2
	}
	start, err := domain.ParseDate(*startFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	end, err := domain.ParseDate(*endFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	logger := observability.NewStderrLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	locations, err := selectLocations(cfg.Locations, *location)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.Open(ctx, cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to open components", "error", err)
		return 1
	}
	defer components.Close()

	checker := quality.Checker{MaxAge: *maxAge}
	var summary quality.Summary
	for _, loc := range locations {
		for _, day := range domain.DaysInRange(start, end) {
			if ctx.Err() != nil {
				logger.Warn("interrupted", "checked", summary.Checked)
				return 1
			}
			report, hours, err := checkPartition(ctx, components, checker, loc, day)
			if err != nil {
				logger.Error("check failed", "location", loc.Name, "date", domain.FormatDate(day), "error", err)
				return 1
			}
			summary.Add(report)
			summary.Observe(hours)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logger.Error("encode summary", "error", err)
		return 1
	}
	if summary.Failed > 0 {
		return 1
	}
	return 0
}

// checkPartition checks one stored day: its rows through the query engine
// and its embedded metadata from the artifact itself.
func checkPartition(ctx context.Context, c *app.Components, checker quality.Checker, loc domain.Location, day time.Time) (quality.Report, []domain.HourlyObservation, error) {
	hours, err := c.Reader.QueryDay(ctx, loc, day)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return quality.Report{}, nil, err
	}
	report := checker.Check(loc.Name, day, hours)
	if len(hours) == 0 {
		return report, nil, nil
	}

	data, err := c.Store.Get(ctx, domain.KeyFor(loc, day).ObjectKey())
	if err != nil {
		return quality.Report{}, nil, fmt.Errorf("read artifact: %w", err)
	}
	art, err := partition.DecodeArtifact(data)
	if err != nil {
		return quality.Report{}, nil, fmt.Errorf("decode artifact: %w", err)
	}
	report.CheckMetadata(art.Location, loc.Name)
	return report, hours, nil
}

func selectLocations(all []domain.Location, name string) ([]domain.Location, error) {
	if name == "" {
		return all, nil
	}
	norm := domain.NormalizeLocationName(name)
	for _, loc := range all {
		if loc.Name == name || loc.PartitionName() == norm {
			return []domain.Location{loc}, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown location %q", domain.ErrInvalidRequest, name)
}
