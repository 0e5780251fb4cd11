package models

import "time"

// Diagnosis is the classifier's verdict for one leaf image.
type Diagnosis struct {
	Label         string             `json:"predicted_label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
}

// Weather is a normalized current-weather observation.
type Weather struct {
	City        string    `json:"city"`
	Country     string    `json:"country"`
	Condition   string    `json:"condition"`
	Description string    `json:"description,omitempty"`
	Temp        float64   `json:"temp"`
	Humidity    int       `json:"humidity"`
	Pressure    int       `json:"pressure"`
	WindSpeed   float64   `json:"wind_speed"`
	ObservedAt  time.Time `json:"date"`
}

// Summary is the one-word condition fed to advice generation.
func (w *Weather) Summary() string {
	if w == nil || w.Condition == "" {
		return UnknownWeather
	}
	return w.Condition
}

// Advisory is the combined disease, weather and advice result.
type Advisory struct {
	Crop           string    `json:"crop"`
	City           string    `json:"city"`
	Weather        *Weather  `json:"weather,omitempty"`
	WeatherSummary string    `json:"weather_summary"`
	WeatherError   string    `json:"weather_error,omitempty"`
	Diagnosis      Diagnosis `json:"disease"`
	Advice         []string  `json:"advice"`
}

const (
	UnknownWeather = "Unknown"
	UnknownLabel   = "Unknown"

	// Request status values written by the status updater.
	StatusProcessing = "processing"
	StatusDelivered  = "delivered"
	StatusFallback   = "fallback"
	StatusFailed     = "failed"
)
