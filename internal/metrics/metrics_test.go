package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CovidSentinel/internal/model"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Fetch("PRIMARY", "INGESTED")
	m.Fetch("PRIMARY", "ERROR")
	m.Fetch("PRIMARY", "ERROR")

	rec := model.DailyRecord{Date: "2022-01-10"}
	rec.Cases.RollingAverages.Seven.Average = model.SomeFloat(1234.5)
	m.Ingested(rec, time.Unix(1641830400, 0))

	m.PeakEvent(model.Cases, "NEW_GLOBAL")
	m.StoreValid(true)
	m.Rebuild(time.Second, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fetches.WithLabelValues("PRIMARY", "ERROR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingested))
	assert.Equal(t, 1641830400.0, testutil.ToFloat64(m.lastIngest))
	assert.Equal(t, 1234.5, testutil.ToFloat64(m.rollingAvg.WithLabelValues("Cases", "7")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeValid))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rebuilds.WithLabelValues("error")))

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP covid_peak_events_total Peak flags raised by metric and event.
# TYPE covid_peak_events_total counter
covid_peak_events_total{event="NEW_GLOBAL",metric="Cases"} 1
`), "covid_peak_events_total"))

	// unknown averages are not published
	assert.Equal(t, 1, testutil.CollectAndCount(m.rollingAvg))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Fetch("PRIMARY", "ERROR")
	m.Ingested(model.DailyRecord{}, time.Now())
	m.StoreValid(false)
	m.Rebuild(0, nil)
}
