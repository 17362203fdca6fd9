package collector

import (
	"context"
	"sync"

	"CovidSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	mu        sync.Mutex
	Primary   model.RawRecord
	Secondary model.SecondaryRecord
	History   []model.RawRecord
	Err       error
	// FailHistory makes the first n PrimaryHistory calls return Err.
	FailHistory int

	PrimaryCalls   int
	SecondaryCalls int
	HistoryCalls   int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) LatestPrimary(_ context.Context) (model.RawRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PrimaryCalls++
	if m.Err != nil {
		return model.RawRecord{}, m.Err
	}
	return m.Primary, nil
}

func (m *MockFetcher) LatestSecondary(_ context.Context) (model.SecondaryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SecondaryCalls++
	if m.Err != nil {
		return model.SecondaryRecord{}, m.Err
	}
	return m.Secondary, nil
}

func (m *MockFetcher) PrimaryHistory(_ context.Context) ([]model.RawRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HistoryCalls++
	if m.FailHistory > 0 {
		m.FailHistory--
		return nil, m.historyErr()
	}
	out := make([]model.RawRecord, len(m.History))
	copy(out, m.History)
	return out, nil
}

// SetPrimary swaps the latest primary record.
func (m *MockFetcher) SetPrimary(r model.RawRecord) {
	m.mu.Lock()
	m.Primary = r
	m.mu.Unlock()
}

func (m *MockFetcher) historyErr() error {
	if m.Err != nil {
		return m.Err
	}
	return ErrNoData
}
