package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/weather-history-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-history-etl/internal/adapter/kafka"
	"github.com/couchcryptid/weather-history-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-history-etl/internal/app"
	"github.com/couchcryptid/weather-history-etl/internal/config"
	"github.com/couchcryptid/weather-history-etl/internal/observability"
	"github.com/couchcryptid/weather-history-etl/internal/pipeline"
	"github.com/couchcryptid/weather-history-etl/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.Open(ctx, cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to open components", "error", err)
		os.Exit(1)
	}

	cursors, err := sqlite.Open(ctx, cfg.Ingest.CursorDBPath)
	if err != nil {
		logger.Error("failed to open cursor store", "error", err)
		os.Exit(1)
	}

	options := []pipeline.Option{pipeline.WithCursorStore(cursors)}

	// Kafka triggers and events (feature-flagged via KAFKA_ENABLED).
	var (
		triggers *kafkaadapter.TriggerReader
		events   *kafkaadapter.EventWriter
	)
	if cfg.Kafka.Enabled {
		triggers = kafkaadapter.NewTriggerReader(cfg.Kafka, logger)
		events = kafkaadapter.NewEventWriter(cfg.Kafka, logger)
		options = append(options, pipeline.WithEventPublisher(events))
		logger.Info("kafka enabled", "brokers", cfg.Kafka.Brokers,
			"trigger_topic", cfg.Kafka.TriggerTopic, "event_topic", cfg.Kafka.EventTopic)
	} else {
		logger.Info("kafka disabled")
	}

	p := components.Pipeline(options...)
	srv := httpadapter.NewServer(cfg.HTTPAddr, components.Reader, components.Lookup(), logger)

	var sched *scheduler.Scheduler
	if cfg.Ingest.SchedulerEnabled {
		sched = scheduler.New(p, cfg.Ingest.DailyScheduleAt, logger)
		if err := sched.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	var wg sync.WaitGroup

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Consume ingestion triggers.
	if triggers != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := triggers.Run(ctx, p); err != nil {
				logger.Error("trigger consumer error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	// A trigger run in flight stops between units; wait for it.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("ingestion run did not stop before shutdown timeout")
	}

	if triggers != nil {
		if err := triggers.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if events != nil {
		if err := events.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := cursors.Close(); err != nil {
		logger.Error("cursor store close error", "error", err)
	}
	if err := components.Close(); err != nil {
		logger.Error("catalog close error", "error", err)
	}

	logger.Info("shutdown complete")
}
