package domain

import "time"

// Ingestion modes.
const (
	ModeDaily    = "daily"
	ModeBackfill = "backfill"
)

// Event types published by the orchestrator.
const (
	EventPartitionWritten = "ingest.partition_written"
	EventRunCompleted     = "ingest.run_completed"
)

// IngestEvent is published after a partition is written and after each run.
type IngestEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	Mode       string    `json:"mode"`
	Location   string    `json:"location,omitempty"`
	Date       string    `json:"date,omitempty"`
	ObjectKey  string    `json:"object_key,omitempty"`
	Succeeded  int       `json:"succeeded,omitempty"`
	Failed     int       `json:"failed,omitempty"`
	FailedKeys []string  `json:"failed_units,omitempty"`
	Cancelled  bool      `json:"cancelled,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// IngestTrigger asks the orchestrator to start a run. Type is ModeDaily or
// ModeBackfill; the remaining fields apply to backfills.
type IngestTrigger struct {
	Type      string `json:"type"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Location  string `json:"location,omitempty"`
	Cursor    string `json:"cursor,omitempty"`
}
