package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"CovidSentinel/internal/model"
)

// RecordStore is the append-only daily history, newest first, kept as one
// JSON document. Every read-modify-write holds the mutex.
type RecordStore struct {
	mu   sync.Mutex
	path string
	opts Options
}

// NewRecordStore opens the store at path. The file is created on first write.
func NewRecordStore(path string, opts Options) *RecordStore {
	return &RecordStore{path: path, opts: opts}
}

// Path returns the document location.
func (s *RecordStore) Path() string { return s.path }

// ReadAll returns every record, newest first. A missing document is an empty store.
func (s *RecordStore) ReadAll() ([]model.DailyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Latest returns the newest record.
func (s *RecordStore) Latest() (model.DailyRecord, error) {
	records, err := s.ReadAll()
	if err != nil {
		return model.DailyRecord{}, err
	}
	if len(records) == 0 {
		return model.DailyRecord{}, ErrNotFound
	}
	return records[0], nil
}

// Find returns the record for date and its position in the store.
func (s *RecordStore) Find(date string) (model.DailyRecord, int, error) {
	records, err := s.ReadAll()
	if err != nil {
		return model.DailyRecord{}, -1, err
	}
	for i, r := range records {
		if r.Date == date {
			return r, i, nil
		}
	}
	return model.DailyRecord{}, -1, fmt.Errorf("%s: %w", date, ErrNotFound)
}

// Prepend adds rec as the newest record. It is a no-op returning false when a
// record for the same date is already the newest. A record older than the
// newest stored date is rejected.
func (s *RecordStore) Prepend(rec model.DailyRecord) (bool, error) {
	_, added, err := s.Update(func([]model.DailyRecord) (model.DailyRecord, error) {
		return rec, nil
	})
	return added, err
}

// Update derives the next newest record from the stored history and prepends
// it, holding the store lock from the read to the write. An error from derive
// aborts without writing. The duplicate and ordering rules of Prepend apply.
func (s *RecordStore) Update(derive func(prior []model.DailyRecord) (model.DailyRecord, error)) (model.DailyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return model.DailyRecord{}, false, err
	}
	rec, err := derive(records)
	if err != nil {
		return model.DailyRecord{}, false, err
	}
	if len(records) > 0 {
		switch newest := records[0].Date; {
		case newest == rec.Date:
			return rec, false, nil
		case newest > rec.Date:
			return model.DailyRecord{}, false, fmt.Errorf("prepend %s: store already holds newer date %s", rec.Date, newest)
		}
	}
	out := make([]model.DailyRecord, 0, len(records)+1)
	out = append(out, rec)
	out = append(out, records...)
	if err := s.write(out); err != nil {
		return model.DailyRecord{}, false, err
	}
	return rec, true, nil
}

// ReplaceAll overwrites the whole document, used by mass recompute.
func (s *RecordStore) ReplaceAll(records []model.DailyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(records)
}

func (s *RecordStore) read() ([]model.DailyRecord, error) {
	data, err := readFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read record store: %w", err)
	}
	if data == nil {
		return []model.DailyRecord{}, nil
	}
	var records []model.DailyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode record store: %w", err)
	}
	return records, nil
}

func (s *RecordStore) write(records []model.DailyRecord) error {
	items := make([]json.RawMessage, len(records))
	for i, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", r.Date, err)
		}
		items[i] = b
	}
	return writeFile(s.path, encodeLines("[", "]", items), s.opts)
}
