package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/streadway/amqp"

	"github.com/CyberwizD/smart-agro-advisor/internal/config"
	"github.com/CyberwizD/smart-agro-advisor/internal/dispatch"
	"github.com/CyberwizD/smart-agro-advisor/internal/routes"
)

var serveOpts struct {
	drainTimeout time.Duration
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and WhatsApp webhook",
	Long: `Run the HTTP API (/api/advice, /api/diagnose, /api/weather/current) and the
WhatsApp webhook. Inbound messages are processed in-process or published to
RabbitMQ depending on DISPATCH_MODE.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().DurationVar(&serveOpts.drainTimeout, "drain-timeout", 60*time.Second, "How long to wait for in-flight advisories on shutdown")
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	handler := &routes.Handler{
		Advisor:        a.advisor,
		Classifier:     a.classifier,
		Weather:        a.weather,
		Rules:          a.rules,
		Metrics:        a.metrics,
		Logger:         a.logger,
		DefaultCountry: a.cfg.DefaultCountry,
		DedupTTL:       a.cfg.DedupTTL,
		MaxUploadBytes: a.cfg.MaxMediaBytes,
	}
	if a.redisRepo != nil {
		handler.Dedup = a.redisRepo
	}

	var local *dispatch.GoroutineDispatcher
	switch a.cfg.DispatchMode {
	case config.DispatchAMQP:
		conn, err := amqp.Dial(a.cfg.RabbitURL)
		if err != nil {
			return fmt.Errorf("failed to connect rabbitmq: %w", err)
		}
		defer conn.Close()
		d, err := dispatch.NewAMQPDispatcher(conn, a.cfg.AdvisoryQueue, a.cfg.DeadLetterQueue, a.logger)
		if err != nil {
			return err
		}
		handler.Dispatcher = d
	default:
		local = dispatch.NewGoroutineDispatcher(a.processor, a.metrics, a.logger)
		handler.Dispatcher = local
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.HTTPPort,
		Handler:           routes.NewRouter(handler, a.metrics, a.logger, time.Now()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownHTTP(srv, a.logger)
	if local != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), serveOpts.drainTimeout)
		defer cancel()
		if err := local.Wait(drainCtx); err != nil {
			a.logger.Warn("in-flight advisories did not finish before shutdown", slog.Any("error", err))
		}
	}
	a.logger.Info("agro advisor stopped")
	return nil
}

func shutdownHTTP(srv *http.Server, logr *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("failed to shutdown http server", slog.Any("error", err))
	}
}
