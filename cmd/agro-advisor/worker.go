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

	"github.com/CyberwizD/smart-agro-advisor/internal/consumer"
	"github.com/CyberwizD/smart-agro-advisor/internal/routes"
)

var workerOpts struct {
	httpPort string
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued WhatsApp messages from RabbitMQ",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runWorker(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().StringVar(&workerOpts.httpPort, "http-port", "8082", "Port for /health and /metrics")
}

func runWorker(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.RabbitURL == "" {
		return fmt.Errorf("RABBITMQ_URL is required for the worker")
	}
	conn, err := amqp.Dial(a.cfg.RabbitURL)
	if err != nil {
		return fmt.Errorf("failed to connect rabbitmq: %w", err)
	}
	defer conn.Close()

	base := consumer.NewBaseConsumer(
		conn,
		a.cfg.AdvisoryQueue,
		a.cfg.DeadLetterQueue,
		a.cfg.PrefetchCount,
		a.cfg.WorkerCount,
		a.logger,
	)
	advisoryConsumer := consumer.NewAdvisoryConsumer(base, a.processor, a.logger)

	srv := &http.Server{
		Addr:              ":" + workerOpts.httpPort,
		Handler:           routes.NewMonitorRouter(a.metrics, time.Now()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("http server error", slog.Any("error", err))
		}
	}()

	if err := advisoryConsumer.Start(ctx); err != nil {
		a.logger.Error("advisory consumer exited", slog.Any("error", err))
	}

	shutdownHTTP(srv, a.logger)
	a.logger.Info("advisory worker stopped")
	return nil
}
