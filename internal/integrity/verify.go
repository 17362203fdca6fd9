// Package integrity checks that the record store is a gap-free daily history.
package integrity

import (
	"errors"
	"time"

	"CovidSentinel/internal/model"
)

// ErrGap reports a record that does not follow the stored history directly.
var ErrGap = errors.New("gap in daily history")

// PreviousDate returns the publication day before date, skipping excluded
// dates. It returns "" for a malformed date.
func PreviousDate(date string, excluded map[string]bool) string {
	t, err := model.ParseDate(date)
	if err != nil {
		return ""
	}
	return model.FormatDate(skipExcluded(t.AddDate(0, 0, -1), excluded))
}

// IsStoreValid walks records (newest first) back from the day before today and
// reports whether every position holds the expected calendar date. Excluded
// dates are skipped. The newest record may be dated today. An empty store is
// invalid.
func IsStoreValid(records []model.DailyRecord, excluded map[string]bool, today string) bool {
	return len(records) > 0 && FirstGap(records, excluded, today) == ""
}

// FirstGap returns the date expected at the first invalid position, or "" when
// the store is valid. An empty store reports the day before today.
func FirstGap(records []model.DailyRecord, excluded map[string]bool, today string) string {
	t, err := model.ParseDate(today)
	if err != nil {
		return today
	}
	expected := t.AddDate(0, 0, -1)
	for i, rec := range records {
		if i == 0 && rec.Date == today {
			continue
		}
		expected = skipExcluded(expected, excluded)
		if want := model.FormatDate(expected); rec.Date != want {
			return want
		}
		expected = expected.AddDate(0, 0, -1)
	}
	if len(records) == 0 {
		return model.FormatDate(skipExcluded(expected, excluded))
	}
	return ""
}

func skipExcluded(day time.Time, excluded map[string]bool) time.Time {
	for excluded[model.FormatDate(day)] {
		day = day.AddDate(0, 0, -1)
	}
	return day
}
