package routes

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CyberwizD/smart-agro-advisor/pkg/metrics"
)

// NewRouter wires the webhook, the advisory API and the health/metrics endpoints.
func NewRouter(h *Handler, metrics *metrics.Metrics, logger *slog.Logger, started time.Time) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	mountMonitoring(r, metrics, started)

	r.Post("/whatsapp", h.Webhook)

	r.Route("/api", func(r chi.Router) {
		r.Post("/advice", h.Advice)
		r.Post("/advice/", h.Advice)
		r.Post("/diagnose", h.Diagnose)
		r.Post("/diagnose/", h.Diagnose)
		r.Get("/weather/current", h.CurrentWeather)
	})
	return r
}

// NewMonitorRouter serves only /health and /metrics, for the queue worker.
func NewMonitorRouter(metrics *metrics.Metrics, started time.Time) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	mountMonitoring(r, metrics, started)
	return r
}

func mountMonitoring(r chi.Router, metrics *metrics.Metrics, started time.Time) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "agro advisor healthy",
			"meta": map[string]interface{}{
				"uptime_seconds": int(time.Since(started).Seconds()),
				"timestamp":      time.Now().UTC(),
			},
		})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
