package model

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date layout used for every record key.
const DateLayout = "2006-01-02"

// ErrDataShape marks a raw record that is missing a field or has the wrong type.
var ErrDataShape = errors.New("data shape")

// Metric names a tracked count series.
type Metric string

const (
	Cases  Metric = "Cases"
	Deaths Metric = "Deaths"
)

// TrackedMetrics lists the metrics every record carries, in reporting order.
var TrackedMetrics = []Metric{Cases, Deaths}

// AverageRecord is one rolling average and its day-over-day change.
type AverageRecord struct {
	Average Float `json:"Average"`
	Change  Float `json:"Change"`
}

// RollingAverages holds the 3-day and 7-day windows.
type RollingAverages struct {
	Three AverageRecord `json:"Three"`
	Seven AverageRecord `json:"Seven"`
}

// Window returns the average record for a window length (3 or 7).
func (r *RollingAverages) Window(days int) *AverageRecord {
	if days == 3 {
		return &r.Three
	}
	return &r.Seven
}

// MetricRecord is one metric's derived values for a single day.
type MetricRecord struct {
	New             Int             `json:"New"`
	Change          Int             `json:"Change"`
	RollingAverages RollingAverages `json:"RollingAverages"`
	Corrections     Int             `json:"Corrections"`
	Total           Int             `json:"Total"`
}

// CaseFatality is deaths.total / cases.total and its change.
type CaseFatality struct {
	Rate   Float `json:"Rate"`
	Change Float `json:"Change"`
}

// DailyRecord is one calendar day's aggregated statistics.
type DailyRecord struct {
	Date         string       `json:"Date"`
	Day          int          `json:"Day"` // Monday=0 ... Sunday=6
	Cases        MetricRecord `json:"Cases"`
	Deaths       MetricRecord `json:"Deaths"`
	CaseFatality CaseFatality `json:"CaseFatality"`
}

// Metric returns the record for m, or nil for an untracked metric.
func (r *DailyRecord) Metric(m Metric) *MetricRecord {
	switch m {
	case Cases:
		return &r.Cases
	case Deaths:
		return &r.Deaths
	}
	return nil
}

// RawRecord is one day as supplied by the primary feed.
type RawRecord struct {
	Date        string `json:"Date"`
	CasesNew    Int    `json:"CasesNew"`
	CasesTotal  Int    `json:"CasesTotal"`
	DeathsNew   Int    `json:"DeathsNew"`
	DeathsTotal Int    `json:"DeathsTotal"`
}

// Values returns the new and cumulative counts for m.
func (r RawRecord) Values(m Metric) (newCount, total Int) {
	switch m {
	case Cases:
		return r.CasesNew, r.CasesTotal
	case Deaths:
		return r.DeathsNew, r.DeathsTotal
	}
	return Int{}, Int{}
}

// Validate checks that the record is complete enough to be published as a new day.
func (r RawRecord) Validate() error {
	if _, err := ParseDate(r.Date); err != nil {
		return err
	}
	for _, m := range TrackedMetrics {
		n, t := r.Values(m)
		if !n.Valid {
			return fmt.Errorf("%w: %sNew missing for %s", ErrDataShape, m, r.Date)
		}
		if !t.Valid {
			return fmt.Errorf("%w: %sTotal missing for %s", ErrDataShape, m, r.Date)
		}
	}
	return nil
}

// SecondaryRecord is one day of the auxiliary vaccination feed.
type SecondaryRecord struct {
	Date                string `json:"Date"`
	FirstDoseNew        Int    `json:"VaccinationsFirstDoseNew"`
	FirstDoseTotal      Int    `json:"VaccinationsFirstDoseTotal"`
	SecondDoseNew       Int    `json:"VaccinationsSecondDoseNew"`
	SecondDoseTotal     Int    `json:"VaccinationsSecondDoseTotal"`
	AdditionalDoseNew   Int    `json:"VaccinationsAdditionalDoseNew"`
	AdditionalDoseTotal Int    `json:"VaccinationsAdditionalDoseTotal"`
}

// Validate checks the first and second dose figures, which the feed always publishes.
func (r SecondaryRecord) Validate() error {
	if _, err := ParseDate(r.Date); err != nil {
		return err
	}
	fields := map[string]Int{
		"VaccinationsFirstDoseNew":    r.FirstDoseNew,
		"VaccinationsFirstDoseTotal":  r.FirstDoseTotal,
		"VaccinationsSecondDoseNew":   r.SecondDoseNew,
		"VaccinationsSecondDoseTotal": r.SecondDoseTotal,
	}
	for name, v := range fields {
		if !v.Valid {
			return fmt.Errorf("%w: %s missing for %s", ErrDataShape, name, r.Date)
		}
	}
	return nil
}

// ParseDate parses an ISO calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrDataShape, s)
	}
	return t, nil
}

// FormatDate formats t as an ISO calendar date.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// Weekday returns Monday=0 ... Sunday=6 for an ISO date, derived from the string only.
func Weekday(date string) (int, error) {
	t, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return (int(t.Weekday()) + 6) % 7, nil
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b string) (int, error) {
	ta, err := ParseDate(a)
	if err != nil {
		return 0, err
	}
	tb, err := ParseDate(b)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}
