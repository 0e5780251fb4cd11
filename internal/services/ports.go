package services

import (
	"context"
	"time"

	"github.com/CyberwizD/smart-agro-advisor/internal/models"
)

// Classifier identifies the crop disease shown in a leaf image.
type Classifier interface {
	Classify(ctx context.Context, image []byte, filename string) (*models.Diagnosis, error)
}

// WeatherProvider returns the current conditions for a city.
type WeatherProvider interface {
	Current(ctx context.Context, city, country string) (*models.Weather, error)
}

// AdviceGenerator turns a diagnosis and a weather summary into advice lines.
type AdviceGenerator interface {
	Generate(ctx context.Context, crop, disease, weatherSummary string) ([]string, error)
}

// MediaFetcher downloads an attachment referenced by an inbound message.
type MediaFetcher interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Deliverer sends a possibly long text to a recipient.
type Deliverer interface {
	Deliver(ctx context.Context, to, text string) error
}

// WeatherCache stores recent observations. GetWeather returns nil, nil on a miss.
type WeatherCache interface {
	GetWeather(ctx context.Context, key string) (*models.Weather, error)
	PutWeather(ctx context.Context, key string, w *models.Weather, ttl time.Duration) error
}

// WeatherLog keeps a history of fetched observations.
type WeatherLog interface {
	Record(ctx context.Context, w *models.Weather) error
}

// StatusStore persists the lifecycle of an inbound request.
type StatusStore interface {
	UpdateStatus(ctx context.Context, requestID, status, sender, detail string) error
}
