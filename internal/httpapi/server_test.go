package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CovidSentinel/internal/display"
	"CovidSentinel/internal/metrics"
	"CovidSentinel/internal/model"
	"CovidSentinel/internal/store"
)

func newServer(t *testing.T) (*Server, *bool) {
	t.Helper()
	dir := t.TempDir()
	records := store.NewRecordStore(filepath.Join(dir, "AllData.json"), store.Options{})
	peaks := store.NewPeakStore(filepath.Join(dir, "RAPeaks.json"), store.Options{})

	for _, d := range []string{"2022-01-09", "2022-01-10"} {
		rec := model.DailyRecord{Date: d}
		rec.Cases.New = model.SomeInt(100)
		_, err := records.Prepend(rec)
		require.NoError(t, err)
	}

	reg := prometheus.NewRegistry()
	metrics.New(reg).StoreValid(true)

	healthy := true
	return &Server{
		Records:  records,
		Peaks:    peaks,
		Panel:    display.NewPanel(nil, ""),
		Gatherer: reg,
		Healthy:  func() bool { return healthy },
	}, &healthy
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestRecords(t *testing.T) {
	s, _ := newServer(t)

	rr := get(t, s, "/api/records/latest")
	require.Equal(t, http.StatusOK, rr.Code)
	var rec model.DailyRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, "2022-01-10", rec.Date)

	rr = get(t, s, "/api/records/2022-01-09")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"Date":"2022-01-09"`)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/records/2021-01-01").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/records/latestish").Code)
}

func TestPeaksAndDisplay(t *testing.T) {
	s, _ := newServer(t)

	rr := get(t, s, "/api/peaks")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"Cases":{"Local":{"Date":null,"Value":null}`)

	rr = get(t, s, "/api/display")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"date":"1970-01-01"`)
}

func TestHealthAndMetrics(t *testing.T) {
	s, healthy := newServer(t)

	assert.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)
	*healthy = false
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/healthz").Code)

	rr := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "covid_store_valid 1"))
}
