package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/CyberwizD/smart-agro-advisor/internal/models"
)

// AdviceRequest is one image plus the place it was taken.
type AdviceRequest struct {
	Image    []byte
	Filename string
	City     string
	Country  string
}

// Advisor merges a disease diagnosis with local weather into advice.
type Advisor struct {
	classifier Classifier
	weather    WeatherProvider
	generator  AdviceGenerator
	country    string
	logger     *slog.Logger
}

func NewAdvisor(classifier Classifier, weather WeatherProvider, generator AdviceGenerator, defaultCountry string, logger *slog.Logger) *Advisor {
	return &Advisor{
		classifier: classifier,
		weather:    weather,
		generator:  generator,
		country:    defaultCountry,
		logger:     logger,
	}
}

// Advise classifies the image, then looks up weather and generates advice.
// A weather failure is recorded on the advisory and does not stop the flow.
// Classification failures return a nil advisory. Advice failures return the
// partial advisory together with the error.
func (a *Advisor) Advise(ctx context.Context, req AdviceRequest) (*models.Advisory, error) {
	diagnosis, err := a.classifier.Classify(ctx, req.Image, req.Filename)
	if err != nil {
		return nil, newError(KindClassificationFailure, "classifier call failed", err)
	}

	country := req.Country
	if country == "" {
		country = a.country
	}
	advisory := &models.Advisory{
		Crop:           models.CropFromLabel(diagnosis.Label),
		City:           strings.TrimSpace(req.City),
		Diagnosis:      *diagnosis,
		WeatherSummary: models.UnknownWeather,
	}

	weather, err := a.weather.Current(ctx, advisory.City, country)
	if err != nil {
		a.logger.Warn("weather unavailable", slog.String("city", advisory.City), slog.Any("error", err))
		advisory.WeatherError = newError(KindWeatherUnavailable, "weather lookup failed", err).Error()
	} else {
		advisory.Weather = weather
		advisory.WeatherSummary = weather.Summary()
	}

	advice, err := a.generator.Generate(ctx, advisory.Crop, diagnosis.Label, advisory.WeatherSummary)
	if err != nil {
		return advisory, newError(KindAdvisoryGenerationFailure, "advice generation failed", err)
	}
	if len(advice) == 0 {
		return advisory, newError(KindAdvisoryGenerationFailure, "no advice generated", nil)
	}
	advisory.Advice = advice
	return advisory, nil
}
