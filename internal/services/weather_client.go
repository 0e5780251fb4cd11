package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CyberwizD/smart-agro-advisor/internal/models"
	"github.com/CyberwizD/smart-agro-advisor/pkg/retry"
)

var (
	ErrCityRequired     = errors.New("weather: city is required")
	ErrCityNotFound     = errors.New("weather: city not found")
	ErrWeatherNotConfig = errors.New("weather: api key not configured")
)

// WeatherHTTPError is a non-2xx answer from the weather API.
type WeatherHTTPError struct {
	StatusCode int
	Body       string
}

func (e *WeatherHTTPError) Error() string {
	return fmt.Sprintf("weather api returned %d: %s", e.StatusCode, e.Body)
}

type openWeatherResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
		Pressure int     `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Dt  int64 `json:"dt"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
}

// OpenWeatherClient reads current conditions from OpenWeatherMap.
type OpenWeatherClient struct {
	endpoint       string
	apiKey         string
	defaultCountry string
	client         *http.Client
	retryCfg       retry.Config
	now            func() time.Time
}

func NewOpenWeatherClient(endpoint, apiKey, defaultCountry string, timeout time.Duration, retryCfg retry.Config) *OpenWeatherClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if endpoint == "" {
		endpoint = "https://api.openweathermap.org/data/2.5/weather"
	}
	retryCfg.Retryable = func(err error) bool {
		if errors.Is(err, ErrCityNotFound) {
			return false
		}
		return retryableUpstream(err)
	}
	return &OpenWeatherClient{
		endpoint:       endpoint,
		apiKey:         apiKey,
		defaultCountry: defaultCountry,
		client:         &http.Client{Timeout: timeout},
		retryCfg:       retryCfg,
		now:            time.Now,
	}
}

func (c *OpenWeatherClient) Current(ctx context.Context, city, country string) (*models.Weather, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, ErrCityRequired
	}
	if c.apiKey == "" {
		return nil, ErrWeatherNotConfig
	}
	if country == "" {
		country = c.defaultCountry
	}

	var weather *models.Weather
	err := retry.Do(ctx, c.retryCfg, func() error {
		w, err := c.fetch(ctx, city, country)
		if err != nil {
			return err
		}
		weather = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return weather, nil
}

func (c *OpenWeatherClient) fetch(ctx context.Context, city, country string) (*models.Weather, error) {
	q := url.Values{}
	if country != "" {
		q.Set("q", city+","+country)
	} else {
		q.Set("q", city)
	}
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrCityNotFound, city)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &WeatherHTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out openWeatherResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode weather response: %w", err))
	}

	w := &models.Weather{
		City:      city,
		Country:   country,
		Temp:      out.Main.Temp,
		Humidity:  out.Main.Humidity,
		Pressure:  out.Main.Pressure,
		WindSpeed: out.Wind.Speed,
	}
	if out.Name != "" {
		w.City = out.Name
	}
	if out.Sys.Country != "" {
		w.Country = out.Sys.Country
	}
	if len(out.Weather) > 0 {
		w.Condition = out.Weather[0].Main
		w.Description = out.Weather[0].Description
	}
	if out.Dt > 0 {
		w.ObservedAt = time.Unix(out.Dt, 0).UTC()
	} else {
		w.ObservedAt = c.now().UTC()
	}
	return w, nil
}

// WeatherService puts a cache in front of a provider and logs fresh observations.
// Cache and log are optional.
type WeatherService struct {
	provider WeatherProvider
	cache    WeatherCache
	history  WeatherLog
	ttl      time.Duration
	logger   *slog.Logger
}

func NewWeatherService(provider WeatherProvider, cache WeatherCache, history WeatherLog, ttl time.Duration, logger *slog.Logger) *WeatherService {
	return &WeatherService{
		provider: provider,
		cache:    cache,
		history:  history,
		ttl:      ttl,
		logger:   logger,
	}
}

func (s *WeatherService) Current(ctx context.Context, city, country string) (*models.Weather, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, ErrCityRequired
	}
	key := weatherCacheKey(city, country)

	if s.cache != nil {
		cached, err := s.cache.GetWeather(ctx, key)
		if err != nil {
			s.logger.Warn("weather cache read failed", slog.String("key", key), slog.Any("error", err))
		} else if cached != nil {
			return cached, nil
		}
	}

	w, err := s.provider.Current(ctx, city, country)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.PutWeather(ctx, key, w, s.ttl); err != nil {
			s.logger.Warn("weather cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	if s.history != nil {
		if err := s.history.Record(ctx, w); err != nil {
			s.logger.Warn("weather log write failed", slog.String("city", w.City), slog.Any("error", err))
		}
	}
	s.logger.Info("weather fetched",
		slog.String("city", w.City),
		slog.String("condition", w.Condition),
		slog.Float64("temp", w.Temp),
	)
	return w, nil
}

func weatherCacheKey(city, country string) string {
	return strings.ToLower(strings.TrimSpace(city)) + "," + strings.ToUpper(strings.TrimSpace(country))
}
