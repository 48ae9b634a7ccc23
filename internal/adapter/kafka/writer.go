package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/weather-history-etl/internal/config"
	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// messageWriter is the subset of kafkago.Writer the EventWriter needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// EventWriter publishes ingestion events to the event topic.
// It implements pipeline.EventPublisher.
type EventWriter struct {
	writer messageWriter
	logger *slog.Logger
}

// NewEventWriter creates a Kafka producer for the configured event topic.
func NewEventWriter(cfg config.KafkaConfig, logger *slog.Logger) *EventWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.EventTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &EventWriter{writer: w, logger: logger}
}

// Publish serializes events and writes them in a single WriteMessages call.
func (w *EventWriter) Publish(ctx context.Context, events ...domain.IngestEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d ingest events: %w", len(msgs), err)
	}
	w.logger.Debug("ingest events published", "count", len(msgs))
	return nil
}

func (w *EventWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an IngestEvent into a Kafka message keyed by
// location so a location's events stay ordered within a partition.
func serializeToMessage(event domain.IngestEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize ingest event: %w", err)
	}
	key := event.Location
	if key == "" {
		key = event.RunID
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
