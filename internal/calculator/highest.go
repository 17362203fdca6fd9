package calculator

import (
	"CovidSentinel/internal/model"
)

// LastHighest scans history from start (newest-first) for the most recent
// record whose New value for m exceeds rec's. ok is false when rec's value is
// unknown or nothing older is higher, i.e. rec is the all-time high.
func LastHighest(history []model.DailyRecord, rec model.DailyRecord, m model.Metric, start int) (found model.DailyRecord, ok bool) {
	target := rec.Metric(m).New
	if !target.Valid {
		return model.DailyRecord{}, false
	}
	if start < 0 {
		start = 0
	}
	for i := start; i < len(history); i++ {
		v := history[i].Metric(m).New
		if v.Valid && v.V > target.V {
			return history[i], true
		}
	}
	return model.DailyRecord{}, false
}
