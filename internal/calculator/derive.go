package calculator

import (
	"fmt"

	"CovidSentinel/internal/model"
)

// ComputeDerived builds a fully derived record for raw. prior is the stored
// history newest-first; records dated on or after raw.Date are ignored, and the
// newest remaining record is treated as the previous day.
func ComputeDerived(raw model.RawRecord, prior []model.DailyRecord) (model.DailyRecord, error) {
	day, err := model.Weekday(raw.Date)
	if err != nil {
		return model.DailyRecord{}, fmt.Errorf("compute %s: %w", raw.Date, err)
	}
	older := olderThan(prior, raw.Date)

	rec := model.DailyRecord{Date: raw.Date, Day: day}
	for _, m := range model.TrackedMetrics {
		newCount, total := raw.Values(m)
		mr := rec.Metric(m)
		mr.New = newCount
		mr.Total = total

		var prev *model.MetricRecord
		if len(older) > 0 {
			prev = older[0].Metric(m)
			mr.Change = newCount.Sub(prev.New)
			mr.Corrections = total.Sub(newCount.Add(prev.Total))
		}

		values := newValues(m, newCount, older, 7)
		for _, w := range Windows {
			avg, err := RollingAverage(values, w)
			if err != nil {
				return model.DailyRecord{}, fmt.Errorf("compute %s %s: %w", raw.Date, m, err)
			}
			ar := mr.RollingAverages.Window(w)
			ar.Average = avg
			if prev != nil {
				ar.Change = avg.Sub(prev.RollingAverages.Window(w).Average)
			}
		}
	}

	rec.CaseFatality.Rate = fatalityRate(raw.DeathsTotal, raw.CasesTotal)
	if len(older) > 0 {
		rec.CaseFatality.Change = rec.CaseFatality.Rate.Sub(older[0].CaseFatality.Rate)
	}
	return rec, nil
}

// fatalityRate is deaths/cases, unknown unless both are known and cases > 0.
func fatalityRate(deathsTotal, casesTotal model.Int) model.Float {
	if !casesTotal.Valid || casesTotal.V <= 0 {
		return model.Float{}
	}
	return deathsTotal.Float().Div(casesTotal.Float())
}

func olderThan(records []model.DailyRecord, date string) []model.DailyRecord {
	for i, r := range records {
		if r.Date < date {
			return records[i:]
		}
	}
	return nil
}
