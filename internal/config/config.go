package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/CyberwizD/smart-agro-advisor/internal/delivery"
)

const (
	DispatchGoroutine = "goroutine"
	DispatchAMQP      = "amqp"
)

// Config holds advisor service configuration loaded from the environment.
type Config struct {
	AppName   string
	LogLevel  string
	LogFormat string
	HTTPPort  string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioAPIBase    string

	ClassifierURL     string
	ClassifierTimeout time.Duration

	OpenWeatherAPIKey string
	OpenWeatherURL    string
	DefaultCountry    string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	AdvisoryRulesFile string

	ProviderTimeout time.Duration
	MediaTimeout    time.Duration
	MinMediaBytes   int
	MaxMediaBytes   int64

	DeliveryInitialChunkSize int
	DeliveryMinChunkSize     int
	DeliveryMaxParts         int
	DeliveryHardLimit        int
	DeliveryInterPartDelay   time.Duration
	DeliveryRateLimitRetries int
	DeliveryRateLimitBackoff time.Duration

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	DatabaseURL  string
	StatusTable  string
	WeatherTable string

	RedisURL        string
	WeatherCacheTTL time.Duration
	DedupTTL        time.Duration

	DispatchMode    string
	RabbitURL       string
	AdvisoryQueue   string
	DeadLetterQueue string
	PrefetchCount   int
	WorkerCount     int
}

// Load loads configuration and performs basic validation.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName:   getEnv("APP_NAME", "agro_advisor"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		HTTPPort:  getEnv("HTTP_PORT", "5000"),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_WHATSAPP_NUMBER", ""),
		TwilioAPIBase:    getEnv("TWILIO_API_BASE", "https://api.twilio.com"),

		ClassifierURL:     getEnv("CLASSIFIER_URL", ""),
		ClassifierTimeout: getEnvAsDuration("CLASSIFIER_TIMEOUT", 60*time.Second),

		OpenWeatherAPIKey: getEnv("OPENWEATHER_API_KEY", ""),
		OpenWeatherURL:    getEnv("OPENWEATHER_URL", "https://api.openweathermap.org/data/2.5/weather"),
		DefaultCountry:    getEnv("DEFAULT_COUNTRY", "CM"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		AdvisoryRulesFile: getEnv("ADVISORY_RULES_FILE", ""),

		ProviderTimeout: getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),
		MediaTimeout:    getEnvAsDuration("MEDIA_TIMEOUT", 30*time.Second),
		MinMediaBytes:   getEnvAsInt("MIN_MEDIA_BYTES", 1024),
		MaxMediaBytes:   int64(getEnvAsInt("MAX_MEDIA_BYTES", 10<<20)),

		DeliveryInitialChunkSize: getEnvAsInt("DELIVERY_INITIAL_CHUNK_SIZE", 1600),
		DeliveryMinChunkSize:     getEnvAsInt("DELIVERY_MIN_CHUNK_SIZE", 400),
		DeliveryMaxParts:         getEnvAsInt("DELIVERY_MAX_PARTS", 5),
		DeliveryHardLimit:        getEnvAsInt("DELIVERY_HARD_LIMIT", 1600),
		DeliveryInterPartDelay:   getEnvAsDuration("DELIVERY_INTER_PART_DELAY", 800*time.Millisecond),
		DeliveryRateLimitRetries: getEnvAsInt("DELIVERY_RATE_LIMIT_RETRIES", 3),
		DeliveryRateLimitBackoff: getEnvAsDuration("DELIVERY_RATE_LIMIT_BACKOFF", 2*time.Second),

		RetryMaxAttempts:    getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoff: getEnvAsDuration("RETRY_INITIAL_BACKOFF", 500*time.Millisecond),
		RetryMaxBackoff:     getEnvAsDuration("RETRY_MAX_BACKOFF", 5*time.Second),

		DatabaseURL:  getEnv("DATABASE_URL", ""),
		StatusTable:  getEnv("STATUS_TABLE", "request_statuses"),
		WeatherTable: getEnv("WEATHER_TABLE", "weather_observations"),

		RedisURL:        getEnv("REDIS_URL", ""),
		WeatherCacheTTL: getEnvAsDuration("WEATHER_CACHE_TTL", 10*time.Minute),
		DedupTTL:        getEnvAsDuration("DEDUP_TTL", 24*time.Hour),

		DispatchMode:    strings.ToLower(getEnv("DISPATCH_MODE", DispatchGoroutine)),
		RabbitURL:       getEnv("RABBITMQ_URL", ""),
		AdvisoryQueue:   getEnv("ADVISORY_QUEUE", "advisory.queue"),
		DeadLetterQueue: getEnv("ADVISORY_DLQ", "advisory.failed"),
		PrefetchCount:   getEnvAsInt("ADVISORY_PREFETCH", 10),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 5),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.TwilioAccountSID == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID")
	}
	if c.TwilioAuthToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if c.TwilioFromNumber == "" {
		missing = append(missing, "TWILIO_WHATSAPP_NUMBER")
	}
	if c.ClassifierURL == "" {
		missing = append(missing, "CLASSIFIER_URL")
	}
	if c.DispatchMode == DispatchAMQP && c.RabbitURL == "" {
		missing = append(missing, "RABBITMQ_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	switch c.DispatchMode {
	case DispatchGoroutine, DispatchAMQP:
	default:
		return fmt.Errorf("unsupported DISPATCH_MODE %q", c.DispatchMode)
	}
	if c.DeliveryMinChunkSize > c.DeliveryInitialChunkSize {
		return fmt.Errorf("DELIVERY_MIN_CHUNK_SIZE (%d) exceeds DELIVERY_INITIAL_CHUNK_SIZE (%d)",
			c.DeliveryMinChunkSize, c.DeliveryInitialChunkSize)
	}
	if c.DeliveryMinChunkSize <= len(delivery.TruncationMarker) {
		return fmt.Errorf("DELIVERY_MIN_CHUNK_SIZE (%d) must exceed %d",
			c.DeliveryMinChunkSize, len(delivery.TruncationMarker))
	}
	if c.DeliveryHardLimit <= 0 {
		return fmt.Errorf("DELIVERY_HARD_LIMIT must be positive, got %d", c.DeliveryHardLimit)
	}
	if need := delivery.LabelWidth(c.DeliveryMaxParts) + c.DeliveryMinChunkSize; c.DeliveryHardLimit < need {
		return fmt.Errorf("DELIVERY_HARD_LIMIT (%d) is below DELIVERY_MIN_CHUNK_SIZE plus part label (%d)",
			c.DeliveryHardLimit, need)
	}
	return nil
}

func getEnv(key, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func getEnvAsInt(key string, def int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid int for %s, using default %d: %v", key, def, err)
			return def
		}
		return i
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("invalid duration for %s, using default %s: %v", key, def, err)
			return def
		}
		return d
	}
	return def
}
