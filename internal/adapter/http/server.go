// Package http exposes the service's HTTP surface: health, readiness,
// metrics, and thin JSON query endpoints over the detection history and
// imagery fetcher.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emberline/firewatch-service/internal/domain"
	"github.com/emberline/firewatch-service/internal/imagery"
	"github.com/emberline/firewatch-service/internal/store"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// DetectionStore is the read side of the history store used by the query
// endpoints.
type DetectionStore interface {
	QueryRecent(ctx context.Context, hours int, minConfidence float64, limit int) ([]domain.Detection, error)
	QueryByLocation(ctx context.Context, center domain.GeoPoint, radiusKm float64, days int) ([]domain.Detection, error)
	Stats(ctx context.Context, days int) (store.Statistics, error)
}

// ImageryFetcher serves satellite snapshot requests.
type ImageryFetcher interface {
	Fetch(ctx context.Context, params imagery.FetchParams) ([]byte, bool)
}

// Server exposes the HTTP endpoints.
type Server struct {
	httpServer *http.Server
	detections DetectionStore
	imagery    ImageryFetcher
	logger     *slog.Logger
}

// NewServer creates an HTTP server with health, metrics, and detection query
// routes.
func NewServer(addr string, ready ReadinessChecker, detections DetectionStore, fetcher ImageryFetcher, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		detections: detections,
		imagery:    fetcher,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/detections/recent", s.handleRecent)
	mux.HandleFunc("GET /api/detections/nearby", s.handleNearby)
	mux.HandleFunc("GET /api/statistics", s.handleStatistics)
	mux.HandleFunc("GET /api/imagery", s.handleImagery)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	hours := intQuery(r, "hours", 24)
	minConfidence := floatQuery(r, "min_confidence", 0)
	limit := intQuery(r, "limit", 100)

	detections, err := s.detections.QueryRecent(r.Context(), hours, minConfidence, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(detections),
		"detections": flatten(detections),
	})
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	center, err := domain.ParseGeoPoint(r.URL.Query().Get("coordinates"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	radiusKm := domain.ClampRadius(floatQuery(r, "radius_km", 50))
	days := intQuery(r, "days", 30)

	detections, err := s.detections.QueryByLocation(r.Context(), center, radiusKm, days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"center":     center,
		"radius_km":  radiusKm,
		"count":      len(detections),
		"detections": flatten(detections),
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	days := intQuery(r, "days", 30)

	stats, err := s.detections.Stats(r.Context(), days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleImagery serves a snapshot for the requested region. When no layer
// produced data, the response is a clearly labeled placeholder marker, never
// fabricated imagery.
func (s *Server) handleImagery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	center, err := domain.ParseGeoPoint(q.Get("coordinates"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	params := imagery.FetchParams{
		Satellite: q.Get("satellite"),
		Product:   q.Get("product"),
		Date:      q.Get("date"),
		Center:    center,
		RadiusKm:  domain.ClampRadius(floatQuery(r, "radius_km", 50)),
	}
	if params.Date == "" {
		params.Date = domain.Now().UTC().Format("2006-01-02")
	}

	blob, ok := s.imagery.Fetch(r.Context(), params)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"available":   false,
			"placeholder": true,
			"product":     params.Product,
			"date":        params.Date,
		})
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(blob) //nolint:errcheck // best-effort image response
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
		return
	}
	s.logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func flatten(detections []domain.Detection) []domain.FlatRecord {
	records := make([]domain.FlatRecord, len(detections))
	for i, d := range detections {
		records[i] = d.Flatten()
	}
	return records
}

func intQuery(r *http.Request, name string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return n
}

func floatQuery(r *http.Request, name string, fallback float64) float64 {
	f, err := strconv.ParseFloat(r.URL.Query().Get(name), 64)
	if err != nil {
		return fallback
	}
	return f
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
