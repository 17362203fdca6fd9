package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CovidSentinel/internal/model"
)

func record(date string, casesNew int64) model.DailyRecord {
	day, _ := model.Weekday(date)
	rec := model.DailyRecord{Date: date, Day: day}
	rec.Cases.New = model.SomeInt(casesNew)
	rec.Cases.RollingAverages.Seven.Average = model.SomeFloat(float64(casesNew) / 7)
	return rec
}

func testOpts() Options { return Options{WriteAttempts: 2, Backoff: time.Millisecond} }

func TestRecordStore_EmptyWhenMissing(t *testing.T) {
	s := NewRecordStore(filepath.Join(t.TempDir(), "AllData.json"), testOpts())

	records, err := s.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = s.Latest()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordStore_PrependIdempotentOnDate(t *testing.T) {
	s := NewRecordStore(filepath.Join(t.TempDir(), "data", "AllData.json"), testOpts())

	added, err := s.Prepend(record("2022-01-09", 900))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Prepend(record("2022-01-10", 1000))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Prepend(record("2022-01-10", 5))
	require.NoError(t, err)
	assert.False(t, added)

	_, err = s.Prepend(record("2022-01-08", 1))
	assert.Error(t, err)

	records, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2022-01-10", records[0].Date)
	assert.Equal(t, model.SomeInt(1000), records[0].Cases.New)
	assert.Equal(t, "2022-01-09", records[1].Date)

	found, idx, err := s.Find("2022-01-09")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, records[1], found)

	_, _, err = s.Find("2021-01-01")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordStore_UpdateDerivesUnderLock(t *testing.T) {
	s := NewRecordStore(filepath.Join(t.TempDir(), "AllData.json"), testOpts())
	next := func(prior []model.DailyRecord) (model.DailyRecord, error) {
		if len(prior) == 0 {
			return record("2022-01-01", 1), nil
		}
		day, err := model.ParseDate(prior[0].Date)
		if err != nil {
			return model.DailyRecord{}, err
		}
		return record(model.FormatDate(day.AddDate(0, 0, 1)), prior[0].Cases.New.V+1), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, added, err := s.Update(next)
			assert.NoError(t, err)
			assert.True(t, added)
		}()
	}
	wg.Wait()

	records, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 20)
	assert.Equal(t, "2022-01-20", records[0].Date)
	for i, r := range records {
		assert.Equal(t, int64(20-i), r.Cases.New.V, r.Date)
	}

	_, added, err := s.Update(func([]model.DailyRecord) (model.DailyRecord, error) {
		return model.DailyRecord{}, errors.New("derive failed")
	})
	assert.EqualError(t, err, "derive failed")
	assert.False(t, added)
	after, err := s.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, records, after)
}

func TestRecordStore_DocumentLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "AllData.json")
	s := NewRecordStore(path, testOpts())
	require.NoError(t, s.ReplaceAll([]model.DailyRecord{record("2022-01-10", 1000), record("2022-01-09", 900)}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], `  {"Date":"2022-01-10","Day":0,`))
	assert.True(t, strings.HasSuffix(lines[1], ","))
	assert.Contains(t, lines[1], `"Change":null`)
	assert.Equal(t, "]", lines[3])

	again, err := s.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []model.DailyRecord{record("2022-01-10", 1000), record("2022-01-09", 900)}, again)
}

func TestRecordStore_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "AllData.json")
	require.NoError(t, os.WriteFile(path, []byte("[{"), 0o644))

	_, err := NewRecordStore(path, testOpts()).ReadAll()
	assert.Error(t, err)
}

func TestWriteFile_SurfacesFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := writeFile(filepath.Join(blocker, "AllData.json"), []byte("[]"), testOpts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 attempts failed")
}

func TestPeakStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "RAPeaks.json")
	s := NewPeakStore(path, testOpts())

	state, err := s.Load()
	require.NoError(t, err)
	for _, m := range model.TrackedMetrics {
		assert.False(t, state[m].Local.IsSet())
		assert.False(t, state[m].Global.IsSet())
	}

	state[model.Cases] = model.MetricPeaks{
		Local:  model.Peak{Date: "2022-01-10", Value: model.SomeFloat(150.5)},
		Global: model.Peak{Date: "2021-01-08", Value: model.SomeFloat(59660.57142857143)},
	}
	require.NoError(t, s.Save(state))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"{\n"+
			`  "Cases": {"Local":{"Date":"2022-01-10","Value":150.5},"Global":{"Date":"2021-01-08","Value":59660.57142857143}},`+"\n"+
			`  "Deaths": {"Local":{"Date":null,"Value":null},"Global":{"Date":null,"Value":null}}`+"\n"+
			"}\n",
		string(data))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}
