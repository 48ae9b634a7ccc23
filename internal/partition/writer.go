package partition

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/weather-history-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/observability"
)

// Writer publishes DailyBatches to the object store.
type Writer struct {
	store   objectstore.Store
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWriter creates a partition writer over store.
func NewWriter(store objectstore.Store, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	return &Writer{store: store, metrics: metrics, logger: logger}
}

// Write stores batch as the single artifact of its partition, replacing any
// previous artifact. Every failure wraps domain.ErrIngestionWrite; a batch
// that fails validation or serialization is never uploaded.
func (w *Writer) Write(ctx context.Context, batch domain.DailyBatch) error {
	key := batch.Key()

	if err := batch.Validate(); err != nil {
		w.metrics.PartitionWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %s: %v", domain.ErrIngestionWrite, key, err)
	}

	data, err := EncodeBatch(batch)
	if err != nil {
		w.metrics.PartitionWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: serialize %s: %w", domain.ErrIngestionWrite, key, err)
	}

	if err := w.store.Put(ctx, key.ObjectKey(), data); err != nil {
		w.metrics.PartitionWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: upload %s: %w", domain.ErrIngestionWrite, key, err)
	}

	w.metrics.PartitionWrites.WithLabelValues("success").Inc()
	w.metrics.PartitionBytes.Add(float64(len(data)))
	w.logger.Debug("partition written", "location", batch.Location.Name, "key", key.ObjectKey(), "bytes", len(data))
	return nil
}
