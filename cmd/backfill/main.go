// Command backfill ingests a historical date range for one location, or for
// every configured location with -location all, and prints the result as
// JSON. It exits 1 when any day failed.
//
// Usage:
//
//	go run ./cmd/backfill -start 2025-01-01 -end 2025-01-31 -location "Austin, TX" [-cursor austin-jan]
//	go run ./cmd/backfill -start 2025-01-01 -end 2025-01-31 -location all
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

	"github.com/joho/godotenv"

	"github.com/couchcryptid/weather-history-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-history-etl/internal/app"
	"github.com/couchcryptid/weather-history-etl/internal/config"
	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/observability"
	"github.com/couchcryptid/weather-history-etl/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	start := flag.String("start", "", "first date to ingest (YYYY-MM-DD)")
	end := flag.String("end", "", "last date to ingest (YYYY-MM-DD)")
	location := flag.String("location", "", `configured location name, or "all"`)
	cursor := flag.String("cursor", "", "name of a resumable cursor (optional)")
	flag.Parse()

	if *start == "" || *end == "" || *location == "" {
		flag.Usage()
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.Open(ctx, cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to open components", "error", err)
		return 1
	}
	defer components.Close()

	var options []pipeline.Option
	if *cursor != "" {
		cursors, err := sqlite.Open(ctx, cfg.Ingest.CursorDBPath)
		if err != nil {
			logger.Error("failed to open cursor store", "error", err)
			return 1
		}
		defer cursors.Close()
		options = append(options, pipeline.WithCursorStore(cursors))
	}

	req := pipeline.BackfillRequest{
		StartDate: *start,
		EndDate:   *end,
		Location:  *location,
		Cursor:    *cursor,
	}
	p := components.Pipeline(options...)

	var results []pipeline.BackfillResult
	if *location == pipeline.AllLocations {
		results, err = p.BackfillAll(ctx, req)
	} else {
		var res pipeline.BackfillResult
		if res, err = p.Backfill(ctx, req); err == nil {
			results = append(results, res)
		}
	}
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		logger.Error("backfill failed", "error", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	var out any = mergeResults(results)
	if *location != pipeline.AllLocations {
		out = results[0]
	}
	if err := enc.Encode(out); err != nil {
		logger.Error("encode result", "error", err)
		return 1
	}
	for _, res := range results {
		if len(res.FailedDays) > 0 || res.Cancelled {
			return 1
		}
	}
	return 0
}

// multiResult is the output of a backfill over every location.
type multiResult struct {
	SuccessfulDays int                       `json:"successful_days"`
	TotalDays      int                       `json:"total_days"`
	FailedDays     int                       `json:"failed_days"`
	Cancelled      bool                      `json:"cancelled"`
	Locations      []pipeline.BackfillResult `json:"locations"`
}

func mergeResults(results []pipeline.BackfillResult) multiResult {
	out := multiResult{Locations: results}
	for _, r := range results {
		out.SuccessfulDays += r.SuccessfulDays
		out.TotalDays += r.TotalDays
		out.FailedDays += len(r.FailedDays)
		out.Cancelled = out.Cancelled || r.Cancelled
	}
	return out
}
