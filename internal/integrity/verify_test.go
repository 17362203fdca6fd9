package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"CovidSentinel/internal/model"
)

func records(dates ...string) []model.DailyRecord {
	out := make([]model.DailyRecord, len(dates))
	for i, d := range dates {
		out[i] = model.DailyRecord{Date: d}
	}
	return out
}

func TestIsStoreValid(t *testing.T) {
	xmas := map[string]bool{"2021-12-25": true, "2021-12-26": true}

	tests := []struct {
		name     string
		records  []model.DailyRecord
		excluded map[string]bool
		today    string
		want     bool
		gap      string
	}{
		{"empty", nil, nil, "2022-01-10", false, "2022-01-09"},
		{"contiguous", records("2022-01-09", "2022-01-08", "2022-01-07"), nil, "2022-01-10", true, ""},
		{"newest is today", records("2022-01-10", "2022-01-09", "2022-01-08"), nil, "2022-01-10", true, ""},
		{"missing yesterday", records("2022-01-08", "2022-01-07"), nil, "2022-01-10", false, "2022-01-09"},
		{"gap in the middle", records("2022-01-09", "2022-01-07"), nil, "2022-01-10", false, "2022-01-08"},
		{"duplicate", records("2022-01-09", "2022-01-09"), nil, "2022-01-10", false, "2022-01-08"},
		{"excluded days skipped", records("2021-12-28", "2021-12-27", "2021-12-24", "2021-12-23"), xmas, "2021-12-29", true, ""},
		{"excluded day stored", records("2021-12-27", "2021-12-26"), xmas, "2021-12-28", false, "2021-12-24"},
		{"today only allowed first", records("2022-01-09", "2022-01-10"), nil, "2022-01-10", false, "2022-01-08"},
		{"bad today", records("2022-01-09"), nil, "yesterday", false, "yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStoreValid(tt.records, tt.excluded, tt.today))
			assert.Equal(t, tt.gap, FirstGap(tt.records, tt.excluded, tt.today))
		})
	}
}

func TestPreviousDate(t *testing.T) {
	xmas := map[string]bool{"2021-12-25": true, "2021-12-26": true}

	assert.Equal(t, "2022-01-12", PreviousDate("2022-01-13", nil))
	assert.Equal(t, "2021-12-31", PreviousDate("2022-01-01", xmas))
	assert.Equal(t, "2021-12-24", PreviousDate("2021-12-27", xmas))
	assert.Empty(t, PreviousDate("13/01/2022", nil))
}
