package peaks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CovidSentinel/internal/model"
)

// series builds newest-first records from 7-day averages given oldest first.
// The oldest record has an unknown change.
func series(start string, avgs []float64) []model.DailyRecord {
	day, _ := time.Parse(model.DateLayout, start)
	out := make([]model.DailyRecord, len(avgs))
	for i, v := range avgs {
		rec := model.DailyRecord{Date: model.FormatDate(day.AddDate(0, 0, i))}
		rec.Cases.RollingAverages.Seven.Average = model.SomeFloat(v)
		if i > 0 {
			rec.Cases.RollingAverages.Seven.Change = model.SomeFloat(v - avgs[i-1])
		}
		out[len(avgs)-1-i] = rec
	}
	return out
}

func casesOnly() []model.Metric { return []model.Metric{model.Cases} }

func withGlobal(value float64) model.PeakState {
	s := model.NewPeakState()
	s[model.Cases] = model.MetricPeaks{Global: model.Peak{Date: "2020-01-01", Value: model.SomeFloat(value)}}
	return s
}

// fold evaluates every record oldest to newest and returns the final state and
// each day's flags, oldest first.
func fold(state model.PeakState, records []model.DailyRecord) (model.PeakState, []Flags) {
	var days []Flags
	for i := len(records) - 1; i >= 0; i-- {
		var res Result
		state, res = Evaluate(state, records[i:], casesOnly())
		days = append(days, res.Flags[model.Cases])
	}
	return state, days
}

func TestEvaluate_LocalCreatedAfterSevenRisingDays(t *testing.T) {
	records := series("2022-01-01", []float64{5, 10, 20, 30, 40, 50, 60, 70})

	state, days := fold(withGlobal(1000), records)

	for i, f := range days[:len(days)-1] {
		assert.False(t, f.Any(), "day %d", i)
	}
	last := days[len(days)-1]
	assert.True(t, last.CreatedLocal)
	assert.True(t, last.NewLocal)
	assert.False(t, last.NewGlobal)
	assert.Equal(t, model.Peak{Date: "2022-01-08", Value: model.SomeFloat(70)}, state[model.Cases].Local)
	assert.Equal(t, 1000.0, state[model.Cases].Global.Value.V)
}

func TestEvaluate_LocalUpdate(t *testing.T) {
	state := withGlobal(1000)
	state[model.Cases] = model.MetricPeaks{
		Local:  model.Peak{Date: "2022-01-08", Value: model.SomeFloat(70)},
		Global: state[model.Cases].Global,
	}

	next, res := Evaluate(state, series("2022-01-08", []float64{70, 71}), casesOnly())
	f := res.Flags[model.Cases]
	assert.True(t, f.NewLocal)
	assert.False(t, f.CreatedLocal)
	assert.False(t, f.NewGlobal)
	assert.Equal(t, model.Peak{Date: "2022-01-09", Value: model.SomeFloat(71)}, next[model.Cases].Local)
	assert.Equal(t, state[model.Cases].Global, next[model.Cases].Global)
	assert.Equal(t, 70.0, state[model.Cases].Local.Value.V, "input state untouched")

	_, res = Evaluate(next, series("2022-01-09", []float64{70, 71}), casesOnly())
	assert.False(t, res.Changed(), "equal values are not peaks")
}

func TestEvaluate_GlobalMovesLocal(t *testing.T) {
	state := withGlobal(100)
	next, res := Evaluate(state, series("2022-02-01", []float64{90, 101}), casesOnly())

	f := res.Flags[model.Cases]
	assert.True(t, f.NewGlobal)
	assert.False(t, f.CreatedGlobal)
	assert.False(t, f.NewLocal)
	want := model.Peak{Date: "2022-02-02", Value: model.SomeFloat(101)}
	assert.Equal(t, want, next[model.Cases].Global)
	assert.Equal(t, want, next[model.Cases].Local)
}

func TestEvaluate_FirstEverValueCreatesGlobal(t *testing.T) {
	next, res := Evaluate(model.NewPeakState(), series("2020-03-01", []float64{3}), model.TrackedMetrics)

	f := res.Flags[model.Cases]
	assert.True(t, f.CreatedGlobal)
	assert.True(t, f.NewGlobal)
	assert.Equal(t, next[model.Cases].Global, next[model.Cases].Local)
	assert.False(t, res.Flags[model.Deaths].Any(), "deaths average unknown")
	assert.False(t, next[model.Deaths].Global.IsSet())
}

func TestEvaluate_UnknownAverageSkipped(t *testing.T) {
	records := series("2022-01-01", []float64{1, 2})
	records[0].Cases.RollingAverages.Seven.Average = model.Float{}

	next, res := Evaluate(model.NewPeakState(), records, casesOnly())
	assert.False(t, res.Changed())
	assert.Equal(t, model.NewPeakState(), next)
}

func localAt(date string, value float64) model.PeakState {
	s := withGlobal(1000)
	s[model.Cases] = model.MetricPeaks{
		Local:  model.Peak{Date: date, Value: model.SomeFloat(value)},
		Global: s[model.Cases].Global,
	}
	return s
}

func falling(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(500 - i*10)
	}
	return out
}

func TestEvaluate_LocalExpiry(t *testing.T) {
	// 2022-01-02 is the local peak; 2022-01-03..2022-01-12 fall for ten days.
	records := series("2022-01-02", falling(11))

	next, res := Evaluate(localAt("2022-01-02", 500), records, casesOnly())
	assert.True(t, res.Flags[model.Cases].ExpiredLocal)
	assert.False(t, next[model.Cases].Local.IsSet())
	assert.True(t, next[model.Cases].Global.IsSet())
	assert.Equal(t, []string{"Local RA(7, 'C') peak expired."}, Messages(res))
}

func TestEvaluate_NoExpiryBeforeTenDays(t *testing.T) {
	records := series("2022-01-02", falling(11))

	_, res := Evaluate(localAt("2022-01-05", 470), records, casesOnly())
	assert.False(t, res.Changed())
}

func TestEvaluate_StreakStopsAtEndOfHistory(t *testing.T) {
	// nine falling days only: the oldest record has no change
	records := series("2022-01-03", falling(10))

	_, res := Evaluate(localAt("2021-12-01", 900), records, casesOnly())
	assert.False(t, res.Flags[model.Cases].ExpiredLocal)

	rising := series("2022-01-01", []float64{10, 20, 30, 40, 50, 60, 70})
	_, res = Evaluate(withGlobal(1000), rising, casesOnly())
	assert.False(t, res.Flags[model.Cases].CreatedLocal, "six rising days")
}

func TestReplay_RiseAndFall(t *testing.T) {
	avgs := make([]float64, 0, 30)
	for i := 1; i <= 10; i++ {
		avgs = append(avgs, float64(i*10))
	}
	for i := 1; i <= 20; i++ {
		avgs = append(avgs, float64(100-i*3))
	}
	records := series("2021-06-01", avgs)

	state := Replay(records)
	assert.Equal(t, model.Peak{Date: "2021-06-10", Value: model.SomeFloat(100)}, state[model.Cases].Global)
	assert.False(t, state[model.Cases].Local.IsSet(), "expired on the tenth falling day")
	assert.False(t, state[model.Deaths].Global.IsSet())

	_, days := fold(model.NewPeakState(), records)
	require.Len(t, days, 30)
	assert.True(t, days[0].CreatedGlobal)
	assert.True(t, days[9].NewGlobal)
	assert.True(t, days[19].ExpiredLocal)
	for i, f := range days[20:] {
		assert.False(t, f.Any(), "day %d", i+20)
	}
}

func TestMessages_Order(t *testing.T) {
	res := Result{
		Metrics: model.TrackedMetrics,
		Flags: map[model.Metric]Flags{
			model.Cases:  {ExpiredLocal: true},
			model.Deaths: {CreatedGlobal: true, NewGlobal: true, CreatedLocal: true, NewLocal: true},
		},
	}
	assert.True(t, res.Changed())
	assert.Equal(t, []string{
		"New global RA(7, 'D') record created.",
		"New global RA(7, 'D') peak.",
		"New local RA(7, 'D') record created.",
		"New local RA(7, 'D') peak.",
		"Local RA(7, 'C') peak expired.",
	}, Messages(res))

	assert.Equal(t, []string{NoPeaks}, Messages(Result{Metrics: model.TrackedMetrics}))
}
