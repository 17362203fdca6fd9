package calculator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CovidSentinel/internal/model"
)

// history returns n consecutive raw days starting at start, oldest-first.
func history(start string, n int) []model.RawRecord {
	day, _ := time.Parse(model.DateLayout, start)
	var casesTotal, deathsTotal int64 = 100000, 2000
	out := make([]model.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		casesNew := int64(1000 + (i*37)%400)
		deathsNew := int64(20 + (i*7)%15)
		casesTotal += casesNew
		deathsTotal += deathsNew
		if i%9 == 4 {
			casesTotal += 120 // retroactive revision
		}
		out = append(out, raw(model.FormatDate(day.AddDate(0, 0, i)), casesNew, casesTotal, deathsNew, deathsTotal))
	}
	return out
}

func reversed(in []model.RawRecord) []model.RawRecord {
	out := make([]model.RawRecord, len(in))
	for i, r := range in {
		out[len(in)-1-i] = r
	}
	return out
}

func TestRebuildAll_MatchesIncremental(t *testing.T) {
	oldest := history("2021-03-01", 40)
	oldest[12].DeathsNew = model.Int{}
	oldest[20].CasesTotal = model.Int{}

	want := buildIncrementally(t, oldest)
	got, err := RebuildAll(reversed(oldest), nil)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	assert.Equal(t, want, got)
}

func TestRebuildAll_Idempotent(t *testing.T) {
	input := reversed(history("2021-03-01", 30))

	first, err := RebuildAll(input, nil)
	require.NoError(t, err)
	second, err := RebuildAll(input, nil)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRebuildAll_OrderingAndDuplicates(t *testing.T) {
	oldest := history("2021-03-01", 5)
	shuffled := []model.RawRecord{oldest[2], oldest[0], oldest[4], oldest[1], oldest[3], oldest[2]}

	got, err := RebuildAll(shuffled, nil)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i := 0; i < len(got)-1; i++ {
		assert.Greater(t, got[i].Date, got[i+1].Date)
	}
	assert.False(t, got[4].Cases.Change.Valid, "oldest record has no predecessor")
}

func TestRebuildAll_DropsExcludedDates(t *testing.T) {
	oldest := history("2021-12-20", 10)
	got, err := RebuildAll(reversed(oldest), map[string]bool{"2021-12-25": true})
	require.NoError(t, err)
	require.Len(t, got, 9)
	for _, r := range got {
		assert.NotEqual(t, "2021-12-25", r.Date)
	}
}

func TestRebuildAll_InvalidDate(t *testing.T) {
	_, err := RebuildAll([]model.RawRecord{raw("2021-13-01", 1, 1, 1, 1)}, nil)
	require.ErrorIs(t, err, model.ErrDataShape)
}

func TestLastHighest(t *testing.T) {
	store := buildIncrementally(t, []model.RawRecord{
		raw("2022-01-01", 500, 500, 5, 5),
		raw("2022-01-02", 1200, 1700, 3, 8),
		raw("2022-01-03", 800, 2500, 9, 17),
		raw("2022-01-04", 900, 3400, 2, 19),
	})

	found, ok := LastHighest(store, store[0], model.Cases, 1)
	require.True(t, ok)
	assert.Equal(t, "2022-01-02", found.Date)

	found, ok = LastHighest(store, store[0], model.Deaths, 1)
	require.True(t, ok)
	assert.Equal(t, "2022-01-03", found.Date)

	_, ok = LastHighest(store, store[2], model.Cases, 3)
	assert.False(t, ok, "2022-01-02 is the all-time high")

	unknown := store[0]
	unknown.Cases.New = model.Int{}
	_, ok = LastHighest(store, unknown, model.Cases, 1)
	assert.False(t, ok)
}
