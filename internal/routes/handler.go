package routes

import (
	"context"
	"log/slog"
	"time"

	"github.com/CyberwizD/smart-agro-advisor/internal/dispatch"
	"github.com/CyberwizD/smart-agro-advisor/internal/services"
	"github.com/CyberwizD/smart-agro-advisor/pkg/metrics"
)

const (
	defaultWeatherCity = "Bamenda"
	defaultUploadBytes = 10 << 20
)

// Deduplicator remembers inbound message ids.
type Deduplicator interface {
	FirstSeen(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

// Handler holds the dependencies shared by the HTTP endpoints.
type Handler struct {
	Dispatcher dispatch.Dispatcher
	Dedup      Deduplicator
	Advisor    services.AdviceService
	Classifier services.Classifier
	Weather    services.WeatherProvider
	Rules      *services.RuleSet
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	DefaultCountry string
	DedupTTL       time.Duration
	MaxUploadBytes int64
}

func (h *Handler) maxUpload() int64 {
	if h.MaxUploadBytes <= 0 {
		return defaultUploadBytes
	}
	return h.MaxUploadBytes
}
