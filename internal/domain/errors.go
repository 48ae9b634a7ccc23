package domain

import "errors"

// Error taxonomy shared by the source client, partition store, orchestrator
// and lookup service. Callers classify with errors.Is; producers wrap these
// with context (and the underlying cause where there is one).
var (
	// ErrInvalidRequest marks caller input (location, date, hour, range) or a
	// definitive 4xx from the source. Never retried.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSourceUnavailable means the weather source could not be reached
	// after exhausting retries, or its circuit breaker is open.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrIngestionWrite means a DailyBatch could not be serialized or uploaded.
	ErrIngestionWrite = errors.New("ingestion write failed")

	// ErrNotFound means the partitioned store has no matching data. It is a
	// normal "not yet ingested" signal, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrCatalogUnavailable means the store or its query engine failed, as
	// opposed to answering that there is no data.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)
