package recorder

import (
	"time"

	"CovidSentinel/internal/model"
)

// Feeds polled by the ingestion loop.
const (
	FeedPrimary   = "PRIMARY"
	FeedSecondary = "SECONDARY"
)

// Ingest outcomes.
const (
	OutcomeIngested  = "INGESTED"
	OutcomeDuplicate = "DUPLICATE"
	OutcomeStale     = "STALE"
	OutcomeInvalid   = "INVALID"
	OutcomeError     = "ERROR"
	OutcomeTimeout   = "TIMEOUT"
	OutcomeExcluded  = "EXCLUDED"
)

// IngestEvent records one poll of a feed.
type IngestEvent struct {
	Date    string // day being searched for
	Feed    string // FeedPrimary or FeedSecondary
	Outcome string
	Note    string
}

// PeakEvent records one peak flag raised for a metric.
type PeakEvent struct {
	Date   string
	Metric model.Metric
	Event  string // "CREATED_GLOBAL", "NEW_GLOBAL", "CREATED_LOCAL", "NEW_LOCAL", "EXPIRED_LOCAL"
	Value  model.Float
}

// RebuildEvent records a mass recompute.
type RebuildEvent struct {
	Reason   string
	Records  int
	Duration time.Duration
	Err      error
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordDaily(rec *model.DailyRecord) error
	RecordIngest(evt *IngestEvent) error
	RecordPeak(evt *PeakEvent) error
	RecordRebuild(evt *RebuildEvent) error
	Close() error
}
