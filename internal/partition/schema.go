package partition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// MetadataLocation is the Parquet key/value metadata entry holding the
// human-readable location name. The partition path only carries the
// normalized form.
const MetadataLocation = "location"

// Row is the fixed on-disk schema of a partition artifact. Partition key
// fields are encoded in the object key, not as columns.
type Row struct {
	Date                 string  `parquet:"date,zstd"`
	Hour                 int32   `parquet:"hour"`
	TemperatureCelsius   float64 `parquet:"temperature_celsius"`
	WindSpeedKmh         float64 `parquet:"wind_speed_kmh"`
	PrecipitationMm      float64 `parquet:"precipitation_mm"`
	CloudCoveragePercent float64 `parquet:"cloud_coverage_percent"`
	IngestionTimestampMs int64   `parquet:"ingestion_timestamp"`
}

// ObservationToRow converts an observation to its stored form.
func ObservationToRow(o *domain.HourlyObservation) Row {
	return Row{
		Date:                 domain.FormatDate(o.Date),
		Hour:                 int32(o.Hour),
		TemperatureCelsius:   o.TemperatureC,
		WindSpeedKmh:         o.WindSpeedKmh,
		PrecipitationMm:      o.PrecipitationMm,
		CloudCoveragePercent: o.CloudCoverPct,
		IngestionTimestampMs: o.IngestedAt.UnixMilli(),
	}
}

// RowToObservation converts a stored row back to an observation of location.
func RowToObservation(r *Row, location string) (domain.HourlyObservation, error) {
	date, err := domain.ParseDate(r.Date)
	if err != nil {
		return domain.HourlyObservation{}, fmt.Errorf("stored row date: %w", err)
	}
	return domain.HourlyObservation{
		Location:        location,
		Date:            date,
		Hour:            int(r.Hour),
		TemperatureC:    r.TemperatureCelsius,
		WindSpeedKmh:    r.WindSpeedKmh,
		PrecipitationMm: r.PrecipitationMm,
		CloudCoverPct:   r.CloudCoveragePercent,
		IngestedAt:      time.UnixMilli(r.IngestionTimestampMs).UTC(),
	}, nil
}

// EncodeBatch serializes a batch into a complete zstd-compressed Parquet file.
func EncodeBatch(batch domain.DailyBatch) ([]byte, error) {
	rows := make([]Row, len(batch.Hours))
	for i := range batch.Hours {
		rows[i] = ObservationToRow(&batch.Hours[i])
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[Row](&buf,
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata(MetadataLocation, batch.Location.Name),
	)
	if _, err := w.Write(rows); err != nil {
		return nil, fmt.Errorf("write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Artifact is a decoded partition file.
type Artifact struct {
	Location string
	Rows     []Row
}

// DecodeArtifact parses a partition file produced by EncodeBatch.
func DecodeArtifact(data []byte) (Artifact, error) {
	r := bytes.NewReader(data)
	f, err := parquet.OpenFile(r, int64(len(data)))
	if err != nil {
		return Artifact{}, fmt.Errorf("open parquet: %w", err)
	}
	loc, _ := f.Lookup(MetadataLocation)

	reader := parquet.NewGenericReader[Row](r)
	defer reader.Close()

	rows := make([]Row, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return Artifact{}, fmt.Errorf("read rows: %w", err)
	}
	return Artifact{Location: loc, Rows: rows[:n]}, nil
}
