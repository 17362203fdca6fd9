// Package httpapi serves the record store, peak state and metrics over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"CovidSentinel/internal/display"
	"CovidSentinel/internal/model"
	"CovidSentinel/internal/store"
)

// RecordSource is the read side of the record store.
type RecordSource interface {
	Latest() (model.DailyRecord, error)
	Find(date string) (model.DailyRecord, int, error)
}

// PeakSource loads the persisted peak state.
type PeakSource interface {
	Load() (model.PeakState, error)
}

// Server exposes read-only views for dashboards and health checks.
type Server struct {
	Records  RecordSource
	Peaks    PeakSource
	Panel    *display.Panel
	Gatherer prometheus.Gatherer
	// Healthy reports whether the last integrity check passed.
	Healthy func() bool
}

// NewRouter wires all HTTP routes.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.health).Methods("GET")
	r.HandleFunc("/api/records/latest", s.latest).Methods("GET")
	r.HandleFunc("/api/records/{date}", s.record).Methods("GET")
	r.HandleFunc("/api/peaks", s.peaks).Methods("GET")
	r.HandleFunc("/api/display", s.display).Methods("GET")
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handlers.RecoveryHandler()(handlers.LoggingHandler(log.Writer(), s.NewRouter())),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] http shutdown: %v", err)
		}
	}()
	log.Printf("[INFO] http api listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	if s.Healthy != nil && !s.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store invalid"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) latest(w http.ResponseWriter, _ *http.Request) {
	rec, err := s.Records.Latest()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) record(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if _, err := model.ParseDate(date); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	rec, _, err := s.Records.Find(date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) peaks(w http.ResponseWriter, _ *http.Request) {
	state, err := s.Peaks.Load()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) display(w http.ResponseWriter, _ *http.Request) {
	if s.Panel == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no display attached"})
		return
	}
	writeJSON(w, http.StatusOK, s.Panel.Snapshot())
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	} else {
		log.Printf("[ERROR] http api: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WARN] encode response: %v", err)
	}
}
