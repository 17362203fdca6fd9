package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"CovidSentinel/internal/model"
)

// PeakStore persists the PeakState document.
type PeakStore struct {
	mu   sync.Mutex
	path string
	opts Options
}

func NewPeakStore(path string, opts Options) *PeakStore {
	return &PeakStore{path: path, opts: opts}
}

// Load reads the state. A missing document yields every metric unset.
func (s *PeakStore) Load() (model.PeakState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := model.NewPeakState()
	data, err := readFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read peak state: %w", err)
	}
	if data == nil {
		return state, nil
	}
	var stored model.PeakState
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode peak state: %w", err)
	}
	for m, p := range stored {
		state[m] = p
	}
	return state, nil
}

// Save overwrites the document, one metric per line.
func (s *PeakStore) Save(state model.PeakState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics := make([]string, 0, len(state))
	for m := range state {
		metrics = append(metrics, string(m))
	}
	sort.Strings(metrics)

	items := make([]json.RawMessage, 0, len(metrics))
	for _, m := range metrics {
		key, _ := json.Marshal(m)
		val, err := json.Marshal(state[model.Metric(m)])
		if err != nil {
			return fmt.Errorf("encode peak state %s: %w", m, err)
		}
		items = append(items, json.RawMessage(fmt.Sprintf("%s: %s", key, val)))
	}
	return writeFile(s.path, encodeLines("{", "}", items), s.opts)
}
