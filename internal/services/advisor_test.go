package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/smart-agro-advisor/internal/models"
)

type stubClassifier struct {
	diagnosis *models.Diagnosis
	err       error
	calls     int
}

func (s *stubClassifier) Classify(context.Context, []byte, string) (*models.Diagnosis, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	d := *s.diagnosis
	return &d, nil
}

func TestAdvisor_Advise(t *testing.T) {
	classifier := &stubClassifier{diagnosis: &models.Diagnosis{Label: "Maize_blight", Confidence: 0.9}}
	weather := &stubWeather{weather: &models.Weather{Condition: "Rain"}}
	advisor := NewAdvisor(classifier, weather, defaultRuleAdvisor(t), "CM", discardLogger())

	advisory, err := advisor.Advise(context.Background(), AdviceRequest{Image: []byte("x"), City: " Bamenda "})
	require.NoError(t, err)
	require.Equal(t, "maize", advisory.Crop)
	require.Equal(t, "Bamenda", advisory.City)
	require.Equal(t, "Rain", advisory.WeatherSummary)
	require.Equal(t, "CM", advisory.Weather.Country)
	require.Empty(t, advisory.WeatherError)
	require.Len(t, advisory.Advice, 3)
	require.Equal(t, "Avoid applying pesticides or fertilizers before rainfall.", advisory.Advice[2])
}

func TestAdvisor_WeatherFailureContinues(t *testing.T) {
	classifier := &stubClassifier{diagnosis: &models.Diagnosis{Label: "Plantain_black_sigatoka"}}
	weather := &stubWeather{err: errors.New("timeout")}
	advisor := NewAdvisor(classifier, weather, defaultRuleAdvisor(t), "CM", discardLogger())

	advisory, err := advisor.Advise(context.Background(), AdviceRequest{Image: []byte("x"), City: "Buea"})
	require.NoError(t, err)
	require.Nil(t, advisory.Weather)
	require.Equal(t, models.UnknownWeather, advisory.WeatherSummary)
	require.Contains(t, advisory.WeatherError, string(KindWeatherUnavailable))
	require.Equal(t, "Monitor soil moisture and weather regularly.", advisory.Advice[len(advisory.Advice)-1])
}

func TestAdvisor_ClassificationFailure(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("model offline")}
	weather := &stubWeather{weather: &models.Weather{Condition: "Rain"}}
	advisor := NewAdvisor(classifier, weather, defaultRuleAdvisor(t), "CM", discardLogger())

	advisory, err := advisor.Advise(context.Background(), AdviceRequest{Image: []byte("x"), City: "Buea"})
	require.Nil(t, advisory)
	require.Equal(t, KindClassificationFailure, KindOf(err))
	require.Zero(t, weather.calls)
}

func TestAdvisor_GenerationFailure(t *testing.T) {
	classifier := &stubClassifier{diagnosis: &models.Diagnosis{Label: "Maize_rust"}}
	weather := &stubWeather{weather: &models.Weather{Condition: "Clear"}}
	generator := &scriptedGenerator{err: errors.New("llm down")}
	advisor := NewAdvisor(classifier, weather, generator, "CM", discardLogger())

	advisory, err := advisor.Advise(context.Background(), AdviceRequest{Image: []byte("x"), City: "Buea"})
	require.Equal(t, KindAdvisoryGenerationFailure, KindOf(err))
	require.NotNil(t, advisory)
	require.Equal(t, "maize", advisory.Crop)
	require.Empty(t, advisory.Advice)

	generator.err = nil
	generator.advice = nil
	_, err = advisor.Advise(context.Background(), AdviceRequest{Image: []byte("x"), City: "Buea"})
	require.Equal(t, KindAdvisoryGenerationFailure, KindOf(err))
}
