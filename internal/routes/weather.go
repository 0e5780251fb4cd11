package routes

import (
	"log/slog"
	"net/http"
	"strings"
)

// CurrentWeather returns live conditions for ?city= (default Bamenda) and ?country=.
func (h *Handler) CurrentWeather(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		city = defaultWeatherCity
	}
	country := strings.TrimSpace(r.URL.Query().Get("country"))
	if country == "" {
		country = h.DefaultCountry
	}

	weather, err := h.Weather.Current(r.Context(), city, country)
	if err != nil {
		h.Logger.Warn("weather lookup failed", slog.String("city", city), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "Failed to fetch weather data.",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   weather,
	})
}
