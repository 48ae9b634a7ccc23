package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/weather-history-etl/internal/config"
	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

const (
	fetchErrBackoff = 2 * time.Second
	commitTimeout   = 10 * time.Second
)

// consumer is the subset of kafkago.Reader the TriggerReader needs.
type consumer interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// TriggerHandler runs the ingestion a trigger asks for.
type TriggerHandler interface {
	HandleTrigger(ctx context.Context, t domain.IngestTrigger) error
}

// TriggerReader consumes ingestion triggers from the trigger topic.
type TriggerReader struct {
	consumer consumer
	logger   *slog.Logger
}

// NewTriggerReader creates a consumer-group reader for the trigger topic.
func NewTriggerReader(cfg config.KafkaConfig, logger *slog.Logger) *TriggerReader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.TriggerTopic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  time.Second,
	})
	return &TriggerReader{consumer: r, logger: logger}
}

// Run handles triggers one at a time until ctx is cancelled. A message is
// committed once handled, including undecodable or rejected triggers, so a
// bad message is never redelivered.
func (r *TriggerReader) Run(ctx context.Context, h TriggerHandler) error {
	for {
		msg, err := r.consumer.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				r.logger.Info("trigger consumer stopping")
				return nil
			}
			r.logger.Warn("fetch trigger failed", "error", err, "retry_after", fetchErrBackoff)
			if !sleepWithContext(ctx, fetchErrBackoff) {
				return nil
			}
			continue
		}

		r.handle(ctx, h, msg)

		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		err = r.consumer.CommitMessages(commitCtx, msg)
		cancel()
		if err != nil {
			r.logger.Error("commit trigger failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

func (r *TriggerReader) handle(ctx context.Context, h TriggerHandler, msg kafkago.Message) {
	trigger, err := parseTrigger(msg.Value)
	if err != nil {
		r.logger.Warn("discarding malformed trigger", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		return
	}
	r.logger.Info("trigger received", "type", trigger.Type, "offset", msg.Offset)
	if err := h.HandleTrigger(ctx, trigger); err != nil {
		r.logger.Warn("trigger rejected", "type", trigger.Type, "offset", msg.Offset, "error", err)
	}
}

// parseTrigger decodes and checks a trigger message body.
func parseTrigger(data []byte) (domain.IngestTrigger, error) {
	var t domain.IngestTrigger
	if err := json.Unmarshal(data, &t); err != nil {
		return domain.IngestTrigger{}, fmt.Errorf("%w: decode trigger: %v", domain.ErrInvalidRequest, err)
	}
	switch t.Type {
	case domain.ModeDaily:
	case domain.ModeBackfill:
		if t.StartDate == "" || t.EndDate == "" || t.Location == "" {
			return domain.IngestTrigger{}, fmt.Errorf("%w: backfill trigger needs start_date, end_date and location", domain.ErrInvalidRequest)
		}
	default:
		return domain.IngestTrigger{}, fmt.Errorf("%w: unknown trigger type %q", domain.ErrInvalidRequest, t.Type)
	}
	return t, nil
}

func (r *TriggerReader) Close() error {
	return r.consumer.Close()
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
