package calculator

import (
	"errors"

	"CovidSentinel/internal/model"
)

// Rolling average window lengths kept on every record.
var Windows = []int{3, 7}

// RollingAverage returns the mean of the first period values. Values are
// newest-first, so values[0] is the day the average belongs to. The result is
// unknown when fewer than period values exist or any of them is unknown.
func RollingAverage(values []model.Int, period int) (model.Float, error) {
	if period <= 0 {
		return model.Float{}, errors.New("period must be positive")
	}
	if len(values) < period {
		return model.Float{}, nil
	}
	var sum int64
	for _, v := range values[:period] {
		if !v.Valid {
			return model.Float{}, nil
		}
		sum += v.V
	}
	return model.SomeFloat(float64(sum) / float64(period)), nil
}

// newValues collects m's New values from today plus the older records, newest-first.
func newValues(m model.Metric, today model.Int, older []model.DailyRecord, limit int) []model.Int {
	out := make([]model.Int, 0, limit)
	out = append(out, today)
	for i := 0; i < len(older) && len(out) < limit; i++ {
		out = append(out, older[i].Metric(m).New)
	}
	return out
}
