package peaks

import (
	"log"

	"CovidSentinel/internal/model"
)

const (
	// CreateStreak is how many consecutive rising days establish a local peak.
	CreateStreak = 7
	// ExpireStreak is how many consecutive falling days clear a local peak.
	ExpireStreak = 10
	// ExpireAfterDays is the minimum age of a local peak before it may expire.
	ExpireAfterDays = 10
)

// Flags are the events raised for one metric on one day.
type Flags struct {
	NewGlobal     bool
	CreatedGlobal bool
	NewLocal      bool
	CreatedLocal  bool
	ExpiredLocal  bool
}

// Any reports whether any flag fired.
func (f Flags) Any() bool {
	return f.NewGlobal || f.CreatedGlobal || f.NewLocal || f.CreatedLocal || f.ExpiredLocal
}

// Result is the outcome of one evaluation, in metric order.
type Result struct {
	Date    string
	Metrics []model.Metric
	Flags   map[model.Metric]Flags
}

// Changed reports whether any metric raised a flag, i.e. the state must be saved.
func (r Result) Changed() bool {
	for _, f := range r.Flags {
		if f.Any() {
			return true
		}
	}
	return false
}

// Evaluate applies the peak rules for history[0] against state and returns the
// updated state. history is newest first; older entries feed the streak scans.
// state is not modified.
func Evaluate(state model.PeakState, history []model.DailyRecord, metrics []model.Metric) (model.PeakState, Result) {
	next := state.Clone()
	res := Result{Metrics: metrics, Flags: make(map[model.Metric]Flags, len(metrics))}
	if len(history) == 0 {
		return next, res
	}
	today := history[0]
	res.Date = today.Date

	for _, m := range metrics {
		mr := today.Metric(m)
		if mr == nil {
			continue
		}
		seven := mr.RollingAverages.Seven
		if !seven.Average.Valid {
			continue
		}
		peaks, flags := evaluateMetric(next[m], today.Date, seven, history, m)
		next[m] = peaks
		res.Flags[m] = flags
	}
	return next, res
}

func evaluateMetric(p model.MetricPeaks, date string, seven model.AverageRecord, history []model.DailyRecord, m model.Metric) (model.MetricPeaks, Flags) {
	var f Flags
	v := seven.Average
	here := model.Peak{Date: date, Value: v}

	// global
	switch {
	case !p.Global.IsSet():
		p.Global, p.Local = here, here
		f.CreatedGlobal, f.NewGlobal = true, true
	case v.V > p.Global.Value.V:
		p.Global, p.Local = here, here
		f.NewGlobal = true
	}

	// local creation
	if !p.Local.IsSet() && seven.Change.Positive() {
		if streak(history, m, model.Float.Positive) >= CreateStreak {
			p.Local = here
			f.CreatedLocal, f.NewLocal = true, true
		}
	}

	// local update
	if !f.NewGlobal && !f.CreatedLocal && p.Local.IsSet() && v.V > p.Local.Value.V {
		p.Local = here
		f.NewLocal = true
	}

	// expiry
	if !f.NewGlobal && !f.NewLocal && p.Local.IsSet() && seven.Change.Negative() {
		age, err := model.DaysBetween(p.Local.Date, date)
		if err != nil {
			log.Printf("[WARN] peak age for %s: %v", m, err)
		} else if age >= ExpireAfterDays && streak(history, m, model.Float.Negative) >= ExpireStreak {
			p.Local = model.Peak{}
			f.ExpiredLocal = true
		}
	}
	return p, f
}

// streak counts history[0] and the consecutive older records whose 7-day
// change satisfies ok. The scan stops at the end of the available history.
func streak(history []model.DailyRecord, m model.Metric, ok func(model.Float) bool) int {
	n := 0
	for i := range history {
		mr := history[i].Metric(m)
		if mr == nil || !ok(mr.RollingAverages.Seven.Change) {
			break
		}
		n++
	}
	return n
}

// Replay rebuilds the peak state from scratch by evaluating every record from
// the oldest to the newest. records is newest first.
func Replay(records []model.DailyRecord) model.PeakState {
	state := model.NewPeakState()
	for i := len(records) - 1; i >= 0; i-- {
		state, _ = Evaluate(state, records[i:], model.TrackedMetrics)
	}
	return state
}
