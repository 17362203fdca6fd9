package recorder

import "CovidSentinel/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordDaily(_ *model.DailyRecord) error { return nil }
func (n *NoopRecorder) RecordIngest(_ *IngestEvent) error      { return nil }
func (n *NoopRecorder) RecordPeak(_ *PeakEvent) error          { return nil }
func (n *NoopRecorder) RecordRebuild(_ *RebuildEvent) error    { return nil }
func (n *NoopRecorder) Close() error                           { return nil }
