package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables
// and the locations file.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080" validate:"required"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
	LocationsFile   string        `envconfig:"LOCATIONS_FILE" default:"locations.yaml" validate:"required"`

	Source SourceConfig
	Store  StoreConfig
	Ingest IngestConfig
	Lookup LookupConfig
	Kafka  KafkaConfig

	Locations []domain.Location `ignored:"true" validate:"required,min=1,dive"`
}

// SourceConfig configures the Open-Meteo client.
type SourceConfig struct {
	ArchiveURL     string        `envconfig:"SOURCE_ARCHIVE_URL" default:"https://archive-api.open-meteo.com" validate:"required,url"`
	ForecastURL    string        `envconfig:"SOURCE_FORECAST_URL" default:"https://api.open-meteo.com" validate:"required,url"`
	Timeout        time.Duration `envconfig:"SOURCE_TIMEOUT" default:"30s" validate:"gt=0"`
	MaxAttempts    int           `envconfig:"SOURCE_MAX_ATTEMPTS" default:"3" validate:"min=1,max=10"`
	BackoffInitial time.Duration `envconfig:"SOURCE_BACKOFF_INITIAL" default:"1s" validate:"gt=0"`
	BackoffMax     time.Duration `envconfig:"SOURCE_BACKOFF_MAX" default:"30s" validate:"gtefield=BackoffInitial"`
	Timezone       string        `envconfig:"SOURCE_TIMEZONE" default:"auto" validate:"required"`
}

// StoreConfig selects and configures the object store holding partitions.
type StoreConfig struct {
	Backend           string `envconfig:"STORE_BACKEND" default:"local" validate:"oneof=local s3"`
	Root              string `envconfig:"STORE_ROOT" default:"./data" validate:"required_if=Backend local"`
	Bucket            string `envconfig:"S3_BUCKET" validate:"required_if=Backend s3"`
	Prefix            string `envconfig:"S3_PREFIX" default:"weather-data"`
	Endpoint          string `envconfig:"S3_ENDPOINT" validate:"omitempty,url"`
	Region            string `envconfig:"AWS_REGION" default:"us-east-1"`
	DuckDBMemoryLimit string `envconfig:"DUCKDB_MEMORY_LIMIT" default:"512MB"`
}

// IngestConfig configures the daily and backfill runs.
type IngestConfig struct {
	DailyLagDays     int           `envconfig:"DAILY_LAG_DAYS" default:"7" validate:"min=0"`
	DailyScheduleAt  string        `envconfig:"DAILY_SCHEDULE_AT" default:"02:00" validate:"clock"`
	SchedulerEnabled bool          `envconfig:"SCHEDULER_ENABLED" default:"false"`
	BackfillDelay    time.Duration `envconfig:"BACKFILL_DELAY" default:"1s" validate:"gte=0"`
	UnitTimeout      time.Duration `envconfig:"UNIT_TIMEOUT" default:"2m" validate:"gt=0"`
	Concurrency      int           `envconfig:"INGEST_CONCURRENCY" default:"4" validate:"min=1"`
	CursorDBPath     string        `envconfig:"CURSOR_DB_PATH" default:"cursors.db"`
}

// LookupConfig configures the historical lookup service.
type LookupConfig struct {
	Concurrency int `envconfig:"LOOKUP_CONCURRENCY" default:"5" validate:"min=1"`
	MaxYears    int `envconfig:"LOOKUP_MAX_YEARS" default:"10" validate:"min=1,max=50"`
}

// KafkaConfig configures the trigger consumer and event producer.
type KafkaConfig struct {
	Enabled      bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers      []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092" validate:"required_if=Enabled true"`
	TriggerTopic string   `envconfig:"KAFKA_TRIGGER_TOPIC" default:"weather-ingest-triggers" validate:"required_if=Enabled true"`
	EventTopic   string   `envconfig:"KAFKA_EVENT_TOPIC" default:"weather-ingest-events" validate:"required_if=Enabled true"`
	GroupID      string   `envconfig:"KAFKA_GROUP_ID" default:"weather-history-etl" validate:"required_if=Enabled true"`
}

// Load reads configuration from environment variables, applying defaults
// where unset, then loads and validates the locations file.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	locs, err := LoadLocations(cfg.LocationsFile)
	if err != nil {
		return nil, err
	}
	cfg.Locations = locs

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report env var names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("envconfig")
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("15:04", fl.Field().String())
		return err == nil
	})
	return v
}

func validate(cfg *Config) error {
	err := newValidator().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s: invalid value %v (%s)", fe.Field(), fe.Value(), rule))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
