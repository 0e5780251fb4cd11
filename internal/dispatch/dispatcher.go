package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/CyberwizD/smart-agro-advisor/internal/models"
	"github.com/CyberwizD/smart-agro-advisor/pkg/metrics"
)

// Dispatcher hands an inbound message to background processing. Callers never
// observe the processing result; an error only means the hand-off failed.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg models.InboundMessage) error
}

// Processor runs the advisory flow for one message.
type Processor interface {
	Process(ctx context.Context, msg models.InboundMessage) error
	Notify(ctx context.Context, to string, err error)
}

// GoroutineDispatcher runs each message on its own goroutine, detached from the
// request that delivered it.
type GoroutineDispatcher struct {
	processor Processor
	metrics   *metrics.Metrics
	logger    *slog.Logger
	wg        sync.WaitGroup
}

func NewGoroutineDispatcher(processor Processor, metrics *metrics.Metrics, logger *slog.Logger) *GoroutineDispatcher {
	return &GoroutineDispatcher{
		processor: processor,
		metrics:   metrics,
		logger:    logger,
	}
}

func (d *GoroutineDispatcher) Dispatch(ctx context.Context, msg models.InboundMessage) error {
	bg := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(bg, msg)
	}()
	return nil
}

// Wait blocks until all dispatched messages have finished or ctx is done.
func (d *GoroutineDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *GoroutineDispatcher) run(ctx context.Context, msg models.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.IncPanic()
			err := fmt.Errorf("panic: %v", r)
			d.logger.Error("advisory task panicked",
				slog.String("request_id", msg.RequestID),
				slog.Any("error", err),
				slog.String("stack", string(debug.Stack())),
			)
			d.notify(ctx, msg, err)
		}
	}()

	if err := d.processor.Process(ctx, msg); err != nil {
		d.logger.Warn("advisory task ended with error",
			slog.String("request_id", msg.RequestID),
			slog.Any("error", err),
		)
	}
}

func (d *GoroutineDispatcher) notify(ctx context.Context, msg models.InboundMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("error notification panicked", slog.String("request_id", msg.RequestID), slog.Any("panic", r))
		}
	}()
	d.processor.Notify(ctx, msg.From, err)
}
