package collector

import (
	"context"

	"CovidSentinel/internal/model"
)

// Fetcher defines the interface for fetching the daily statistics feeds.
type Fetcher interface {
	// LatestPrimary returns the newest case/death record the feed publishes.
	LatestPrimary(ctx context.Context) (model.RawRecord, error)
	// LatestSecondary returns the newest vaccination record.
	LatestSecondary(ctx context.Context) (model.SecondaryRecord, error)
	// PrimaryHistory returns every published case/death record, newest first.
	PrimaryHistory(ctx context.Context) ([]model.RawRecord, error)
	Name() string
}
