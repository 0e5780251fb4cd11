package main

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/CyberwizD/smart-agro-advisor/internal/config"
	"github.com/CyberwizD/smart-agro-advisor/internal/delivery"
	"github.com/CyberwizD/smart-agro-advisor/internal/repository"
	"github.com/CyberwizD/smart-agro-advisor/internal/services"
	"github.com/CyberwizD/smart-agro-advisor/pkg/logger"
	"github.com/CyberwizD/smart-agro-advisor/pkg/metrics"
	"github.com/CyberwizD/smart-agro-advisor/pkg/retry"
)

// app holds the components shared by the serve and worker commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	db *gorm.DB

	redisRepo  *repository.RedisRepository
	driver     *delivery.Driver
	classifier *services.ClassifierClient
	weather    *services.WeatherService
	rules      *services.RuleSet
	advisor    *services.Advisor
	processor  *services.ReplyProcessor
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger.New(cfg.LogLevel, cfg.LogFormat),
		metrics: metrics.New(),
	}
	a.logger.Info("starting agro advisor", slog.String("app", cfg.AppName), slog.String("dispatch", cfg.DispatchMode))

	if err := a.connectStores(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.buildServices(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) connectStores(ctx context.Context) error {
	if a.cfg.DatabaseURL != "" {
		db, err := repository.OpenPostgres(a.cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		a.db = db
	} else {
		a.logger.Warn("DATABASE_URL not set, request statuses and weather history are not persisted")
	}

	if a.cfg.RedisURL != "" {
		rdb, err := repository.NewRedisClient(ctx, a.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		a.redisRepo = repository.NewRedisRepository(rdb, a.cfg.DedupTTL)
	} else {
		a.logger.Warn("REDIS_URL not set, weather caching and webhook dedup are disabled")
	}
	return nil
}

func (a *app) buildServices() error {
	cfg := a.cfg
	retryCfg := retry.Config{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
		MaxBackoff:     cfg.RetryMaxBackoff,
	}

	a.driver = newDriver(cfg, a.logger, a.metrics)

	var statusStore services.StatusStore
	var weatherLog services.WeatherLog
	if a.db != nil {
		store, err := repository.NewStatusStore(a.db, cfg.StatusTable)
		if err != nil {
			return fmt.Errorf("migrate status table: %w", err)
		}
		history, err := repository.NewWeatherLog(a.db, cfg.WeatherTable)
		if err != nil {
			return fmt.Errorf("migrate weather table: %w", err)
		}
		statusStore, weatherLog = store, history
	}
	var weatherCache services.WeatherCache
	if a.redisRepo != nil {
		weatherCache = a.redisRepo
	}

	owm := services.NewOpenWeatherClient(cfg.OpenWeatherURL, cfg.OpenWeatherAPIKey, cfg.DefaultCountry, cfg.ProviderTimeout, retryCfg)
	a.weather = services.NewWeatherService(owm, weatherCache, weatherLog, cfg.WeatherCacheTTL, a.logger)
	a.classifier = services.NewClassifierClient(cfg.ClassifierURL, cfg.ClassifierTimeout, retryCfg, a.logger)

	rules, err := services.LoadRuleSet(cfg.AdvisoryRulesFile)
	if err != nil {
		return err
	}
	a.rules = rules

	var generator services.AdviceGenerator = services.NewRuleAdvisor(rules)
	if cfg.OpenAIAPIKey != "" {
		llm, err := services.NewLLMAdvisor(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.ClassifierTimeout, a.logger)
		if err != nil {
			return err
		}
		generator = &services.FallbackAdvisor{Primary: llm, Secondary: generator, Logger: a.logger}
		a.logger.Info("llm advice enabled", slog.String("model", cfg.OpenAIModel))
	}
	a.advisor = services.NewAdvisor(a.classifier, a.weather, generator, cfg.DefaultCountry, a.logger)

	media := services.NewMediaClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.MaxMediaBytes, cfg.MediaTimeout)
	a.processor = services.NewReplyProcessor(
		a.driver,
		media,
		a.advisor,
		services.NewStatusUpdater(statusStore, a.logger),
		a.metrics,
		a.logger,
		cfg.MinMediaBytes,
	)
	return nil
}

func newDriver(cfg *config.Config, logr *slog.Logger, m *metrics.Metrics) *delivery.Driver {
	transport := services.NewTwilioTransport(
		cfg.TwilioAccountSID,
		cfg.TwilioAuthToken,
		cfg.TwilioFromNumber,
		cfg.TwilioAPIBase,
		cfg.ProviderTimeout,
		logr,
	)
	return delivery.NewDriver(transport, delivery.Config{
		InitialChunkSize:     cfg.DeliveryInitialChunkSize,
		MinChunkSize:         cfg.DeliveryMinChunkSize,
		MaxParts:             cfg.DeliveryMaxParts,
		HardLimit:            cfg.DeliveryHardLimit,
		InterPartDelay:       cfg.DeliveryInterPartDelay,
		RateLimitRetries:     cfg.DeliveryRateLimitRetries,
		RateLimitBackoffBase: cfg.DeliveryRateLimitBackoff,
	}, logr, delivery.WithRecorder(m))
}

func (a *app) close() {
	if a.redisRepo != nil {
		if err := a.redisRepo.Close(); err != nil {
			a.logger.Error("failed to close redis", slog.Any("error", err))
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
