package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/elonfeng/foodbuzz/internal/pipeline"
	"github.com/elonfeng/foodbuzz/internal/runlock"
	"github.com/elonfeng/foodbuzz/internal/store"
	"github.com/elonfeng/foodbuzz/pkg/trend"
)

// Pipeline is the part of the pipeline runner the API exposes.
type Pipeline interface {
	Run(ctx context.Context) (pipeline.Summary, error)
	Report(ctx context.Context) (trend.Report, error)
	SnapshotKeys(ctx context.Context) ([]string, error)
	Forecast(ctx context.Context) (trend.Forecast, error)
}

// Server provides the HTTP API.
type Server struct {
	store    store.Store
	pipeline Pipeline
	port     int
	logger   *zerolog.Logger
}

// New creates a new HTTP server.
func New(s store.Store, p Pipeline, port int, logger *zerolog.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{
		store:    s,
		pipeline: p,
		port:     port,
		logger:   logger,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/entities", s.handleEntities)
	mux.HandleFunc("/api/v1/snapshots", s.handleSnapshots)
	mux.HandleFunc("/api/v1/movers", s.handleMovers)
	mux.HandleFunc("/api/v1/forecast", s.handleForecast)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/run", s.handleRun)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// ListenAndServe starts the HTTP server and shuts it down when ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("foodbuzz server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	opts := store.EntityListOpts{Limit: 50}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		opts.Limit = min(n, 1000)
	}
	if v := q.Get("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid min_score"})
			return
		}
		opts.MinScore = f
	}

	entities, err := s.store.ListEntities(r.Context(), opts)
	if err != nil {
		s.serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  entities,
		"count": len(entities),
	})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	keys, err := s.pipeline.SnapshotKeys(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  keys,
		"count": len(keys),
	})
}

func (s *Server) handleMovers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	report, err := s.pipeline.Report(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	weeks := 0
	if v := r.URL.Query().Get("weeks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid weeks"})
			return
		}
		weeks = n
	}

	f, err := s.pipeline.Forecast(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	f.Weeks = f.Tail(weeks)

	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	runs, err := s.store.ListRuns(r.Context(), 20)
	if err != nil {
		s.serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	sum, err := s.pipeline.Run(r.Context())
	if errors.Is(err, runlock.ErrLocked) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("api request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
