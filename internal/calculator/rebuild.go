package calculator

import (
	"sort"

	"CovidSentinel/internal/model"
)

// RebuildAll regenerates the whole store from a raw history dump. The result is
// newest-first, one record per date; records dated on excluded dates are dropped.
// Output depends only on the input.
func RebuildAll(raw []model.RawRecord, excluded map[string]bool) ([]model.DailyRecord, error) {
	sorted := make([]model.RawRecord, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		if seen[r.Date] || excluded[r.Date] {
			continue
		}
		if _, err := model.ParseDate(r.Date); err != nil {
			return nil, err
		}
		seen[r.Date] = true
		sorted = append(sorted, r)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date > sorted[j].Date })

	records := make([]model.DailyRecord, len(sorted))
	for i, r := range sorted {
		day, _ := model.Weekday(r.Date)
		rec := model.DailyRecord{Date: r.Date, Day: day}
		for _, m := range model.TrackedMetrics {
			mr := rec.Metric(m)
			mr.New, mr.Total = r.Values(m)
		}
		rec.CaseFatality.Rate = fatalityRate(r.DeathsTotal, r.CasesTotal)
		records[i] = rec
	}

	// Pass 1: rolling averages by lookahead into older records.
	for i := range records {
		for _, m := range model.TrackedMetrics {
			mr := records[i].Metric(m)
			values := newValues(m, mr.New, records[i+1:], 7)
			for _, w := range Windows {
				avg, err := RollingAverage(values, w)
				if err != nil {
					return nil, err
				}
				mr.RollingAverages.Window(w).Average = avg
			}
		}
	}

	// Pass 2: changes against the successor (previous day).
	for i := 0; i < len(records)-1; i++ {
		cur, prev := &records[i], &records[i+1]
		for _, m := range model.TrackedMetrics {
			mr, pr := cur.Metric(m), prev.Metric(m)
			mr.Change = mr.New.Sub(pr.New)
			mr.Corrections = mr.Total.Sub(mr.New.Add(pr.Total))
			for _, w := range Windows {
				ar := mr.RollingAverages.Window(w)
				ar.Change = ar.Average.Sub(pr.RollingAverages.Window(w).Average)
			}
		}
		cur.CaseFatality.Change = cur.CaseFatality.Rate.Sub(prev.CaseFatality.Rate)
	}
	return records, nil
}
