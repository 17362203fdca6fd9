// Package metrics exposes ingestion and peak tracking as Prometheus series.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"CovidSentinel/internal/calculator"
	"CovidSentinel/internal/model"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	fetches       *prometheus.CounterVec
	ingested      prometheus.Counter
	lastIngest    prometheus.Gauge
	rollingAvg    *prometheus.GaugeVec
	peakEvents    *prometheus.CounterVec
	storeValid    prometheus.Gauge
	rebuilds      *prometheus.CounterVec
	rebuildTiming prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "covid_fetch_attempts_total",
			Help: "Feed polls by feed and outcome.",
		}, []string{"feed", "outcome"}),
		ingested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "covid_records_ingested_total",
			Help: "Daily records prepended to the store.",
		}),
		lastIngest: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "covid_last_ingest_timestamp_seconds",
			Help: "Unix time of the last successful ingest.",
		}),
		rollingAvg: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "covid_rolling_average",
			Help: "Latest rolling average by metric and window length in days.",
		}, []string{"metric", "window"}),
		peakEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "covid_peak_events_total",
			Help: "Peak flags raised by metric and event.",
		}, []string{"metric", "event"}),
		storeValid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "covid_store_valid",
			Help: "1 when the last integrity check passed.",
		}),
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "covid_rebuilds_total",
			Help: "Mass recomputes by result.",
		}, []string{"result"}),
		rebuildTiming: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "covid_rebuild_duration_seconds",
			Help:    "Duration of mass recomputes.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.fetches,
		m.ingested,
		m.lastIngest,
		m.rollingAvg,
		m.peakEvents,
		m.storeValid,
		m.rebuilds,
		m.rebuildTiming,
	)
	return m
}

// Fetch counts one poll of feed.
func (m *Metrics) Fetch(feed, outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(feed, outcome).Inc()
}

// Ingested records a stored record and its rolling averages.
func (m *Metrics) Ingested(rec model.DailyRecord, at time.Time) {
	if m == nil {
		return
	}
	m.ingested.Inc()
	m.lastIngest.Set(float64(at.Unix()))
	m.Averages(rec)
}

// Averages publishes the known rolling averages of rec.
func (m *Metrics) Averages(rec model.DailyRecord) {
	if m == nil {
		return
	}
	for _, metric := range model.TrackedMetrics {
		ra := rec.Metric(metric).RollingAverages
		for _, w := range calculator.Windows {
			if avg := ra.Window(w).Average; avg.Valid {
				m.rollingAvg.WithLabelValues(string(metric), strconv.Itoa(w)).Set(avg.V)
			}
		}
	}
}

// PeakEvent counts one raised peak flag.
func (m *Metrics) PeakEvent(metric model.Metric, event string) {
	if m == nil {
		return
	}
	m.peakEvents.WithLabelValues(string(metric), event).Inc()
}

// StoreValid records the integrity check outcome.
func (m *Metrics) StoreValid(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.storeValid.Set(1)
	} else {
		m.storeValid.Set(0)
	}
}

// Rebuild records a mass recompute.
func (m *Metrics) Rebuild(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.rebuilds.WithLabelValues(result).Inc()
	m.rebuildTiming.Observe(d.Seconds())
}
