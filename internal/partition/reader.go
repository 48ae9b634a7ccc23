package partition

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/couchcryptid/weather-history-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/observability"
)

// CatalogOptions configures the DuckDB query engine.
type CatalogOptions struct {
	MemoryLimit string
	// S3 enables httpfs with the AWS credential chain.
	S3       bool
	Region   string
	Endpoint string
}

// Reader answers point and day queries against stored partitions.
type Reader struct {
	store   objectstore.Store
	db      *sql.DB
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewReader opens an in-memory DuckDB catalog over store.
func NewReader(store objectstore.Store, opts CatalogOptions, metrics *observability.Metrics, logger *slog.Logger) (*Reader, error) {
	boot := bootStatements(opts)
	connector, err := duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		for _, stmt := range boot {
			if _, err := execer.ExecContext(context.Background(), stmt, nil); err != nil {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Reader{
		store:   store,
		db:      sql.OpenDB(connector),
		metrics: metrics,
		logger:  logger,
	}, nil
}

// bootStatements run on every new DuckDB connection.
func bootStatements(opts CatalogOptions) []string {
	var stmts []string
	if opts.MemoryLimit != "" {
		stmts = append(stmts, fmt.Sprintf("SET memory_limit=%s", quote(opts.MemoryLimit)))
	}
	if !opts.S3 {
		return stmts
	}
	stmts = append(stmts, "INSTALL httpfs", "LOAD httpfs")

	secret := []string{"TYPE s3", "PROVIDER credential_chain"}
	if opts.Region != "" {
		secret = append(secret, "REGION "+quote(opts.Region))
	}
	if opts.Endpoint != "" {
		host, useSSL := endpointHost(opts.Endpoint)
		secret = append(secret, "ENDPOINT "+quote(host), "URL_STYLE 'path'")
		if !useSSL {
			secret = append(secret, "USE_SSL false")
		}
	}
	stmts = append(stmts, "CREATE OR REPLACE SECRET weather_store ("+strings.Join(secret, ", ")+")")
	return stmts
}

func endpointHost(endpoint string) (string, bool) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint, true
	}
	return u.Host, u.Scheme != "http"
}

// quote renders s as a DuckDB string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Close releases the DuckDB catalog.
func (r *Reader) Close() error {
	return r.db.Close()
}

// CheckReadiness returns nil when the query engine answers.
func (r *Reader) CheckReadiness(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	return nil
}

const selectColumns = `date, hour, temperature_celsius, wind_speed_kmh, precipitation_mm,
		cloud_coverage_percent, ingestion_timestamp`

// Query returns the stored observation of loc at date and hour. It returns
// domain.ErrNotFound when the partition or the hour row is absent and
// domain.ErrCatalogUnavailable when the store or query engine fails.
func (r *Reader) Query(ctx context.Context, loc domain.Location, date time.Time, hour int) (domain.HourlyObservation, error) {
	if !domain.ValidHour(hour) {
		return domain.HourlyObservation{}, fmt.Errorf("%w: hour %d out of range", domain.ErrInvalidRequest, hour)
	}
	obs, err := r.query(ctx, loc, date, &hour)
	if err != nil {
		return domain.HourlyObservation{}, err
	}
	return obs[0], nil
}

// QueryDay returns every stored hour of loc at date, ordered by hour.
func (r *Reader) QueryDay(ctx context.Context, loc domain.Location, date time.Time) ([]domain.HourlyObservation, error) {
	return r.query(ctx, loc, date, nil)
}

func (r *Reader) query(ctx context.Context, loc domain.Location, date time.Time, hour *int) (out []domain.HourlyObservation, err error) {
	start := time.Now()
	key := domain.KeyFor(loc, date)
	defer func() {
		r.metrics.QueryDuration.Observe(time.Since(start).Seconds())
		r.metrics.PartitionQueries.WithLabelValues(queryOutcome(err)).Inc()
	}()

	keys, err := r.store.List(ctx, key.Prefix()+"/")
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", domain.ErrCatalogUnavailable, key, err)
	}
	if !hasArtifact(keys) {
		return nil, fmt.Errorf("%w: no artifact in %s", domain.ErrNotFound, key)
	}

	// The glob is a literal: DuckDB binds table function arguments at plan time.
	q := `SELECT ` + selectColumns + `
		FROM read_parquet(` + quote(r.store.URI(key.Prefix()+"/*.parquet")) + `,
			hive_partitioning = true,
			hive_types = {'location': VARCHAR, 'year': BIGINT, 'month': BIGINT, 'day': BIGINT})
		WHERE location = ? AND year = ? AND month = ? AND day = ?`
	args := []any{key.Location, key.Year, key.Month, key.Day}
	if hour != nil {
		q += ` AND hour = ?`
		args = append(args, *hour)
	}
	q += ` ORDER BY hour`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", domain.ErrCatalogUnavailable, key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.Date, &row.Hour, &row.TemperatureCelsius, &row.WindSpeedKmh,
			&row.PrecipitationMm, &row.CloudCoveragePercent, &row.IngestionTimestampMs); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %w", domain.ErrCatalogUnavailable, key, err)
		}
		obs, err := RowToObservation(&row, loc.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrCatalogUnavailable, key, err)
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrCatalogUnavailable, key, err)
	}
	if len(out) == 0 {
		if hour != nil {
			return nil, fmt.Errorf("%w: hour %d in %s", domain.ErrNotFound, *hour, key)
		}
		return nil, fmt.Errorf("%w: no rows in %s", domain.ErrNotFound, key)
	}
	return out, nil
}

func hasArtifact(keys []string) bool {
	for _, k := range keys {
		if strings.HasSuffix(k, domain.ArtifactExt) {
			return true
		}
	}
	return false
}

func queryOutcome(err error) string {
	switch {
	case err == nil:
		return "hit"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "catalog_unavailable"
	}
}
