package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// ErrDeliveryFailed is wrapped by every error Deliver returns.
var ErrDeliveryFailed = errors.New("delivery failed")

const shrinkFactor = 0.75

// Config tunes the driver. Zero values fall back to DefaultConfig.
type Config struct {
	InitialChunkSize     int
	MinChunkSize         int
	MaxParts             int
	HardLimit            int
	InterPartDelay       time.Duration
	RateLimitRetries     int
	RateLimitBackoffBase time.Duration
}

// DefaultConfig matches WhatsApp-over-Twilio limits.
func DefaultConfig() Config {
	return Config{
		InitialChunkSize:     1600,
		MinChunkSize:         400,
		MaxParts:             5,
		HardLimit:            1600,
		InterPartDelay:       800 * time.Millisecond,
		RateLimitRetries:     3,
		RateLimitBackoffBase: 2 * time.Second,
	}
}

// Recorder receives delivery events. metrics.Metrics satisfies it.
type Recorder interface {
	IncPartsSent()
	IncChunkShrinks()
	IncRateLimitRetries()
	IncDeliveryFailed()
}

type nopRecorder struct{}

func (nopRecorder) IncPartsSent()        {}
func (nopRecorder) IncChunkShrinks()     {}
func (nopRecorder) IncRateLimitRetries() {}
func (nopRecorder) IncDeliveryFailed()   {}

// Driver sends a message of any length through a Transport, one part at a time.
type Driver struct {
	transport Transport
	cfg       Config
	logger    *slog.Logger
	recorder  Recorder
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option customises a Driver.
type Option func(*Driver)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Driver) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithSleeper replaces the wait used for inter-part delays and rate-limit backoff.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Driver) {
		if fn != nil {
			d.sleep = fn
		}
	}
}

func NewDriver(transport Transport, cfg Config, logger *slog.Logger, opts ...Option) *Driver {
	def := DefaultConfig()
	if cfg.InitialChunkSize <= 0 {
		cfg.InitialChunkSize = def.InitialChunkSize
	}
	if cfg.MinChunkSize <= 0 {
		cfg.MinChunkSize = def.MinChunkSize
	}
	if cfg.MaxParts <= 0 {
		cfg.MaxParts = def.MaxParts
	}
	if cfg.RateLimitRetries < 0 {
		cfg.RateLimitRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Driver{
		transport: transport,
		cfg:       cfg,
		logger:    logger,
		recorder:  nopRecorder{},
		sleep:     sleepWithContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver splits text into parts and sends them to the destination in order.
// It returns nil once every part of one plan went through, and an error wrapping
// ErrDeliveryFailed otherwise.
//
// A body-too-long rejection restarts the whole message at a smaller chunk size.
// Parts already accepted by the transport are not recalled, so the recipient can
// see the start of the message twice.
func (d *Driver) Deliver(ctx context.Context, to, text string) error {
	chunkSize := d.cfg.InitialChunkSize
	opts := PlanOptions{MaxParts: d.cfg.MaxParts, HardLimit: d.cfg.HardLimit}

	for chunkSize >= d.cfg.MinChunkSize {
		parts := Plan(text, chunkSize, opts)
		if len(parts) == 0 {
			return nil
		}

		err := d.sendAll(ctx, to, parts, chunkSize)
		if err == nil {
			return nil
		}
		if Classify(err) != KindBodyTooLong {
			return d.fail(to, err)
		}

		next := int(math.Round(float64(chunkSize) * shrinkFactor))
		if next >= chunkSize || next < d.cfg.MinChunkSize {
			return d.fail(to, fmt.Errorf("chunk size %d cannot shrink below minimum %d: %w", chunkSize, d.cfg.MinChunkSize, err))
		}
		d.logger.Warn("transport rejected part length, shrinking chunk size",
			slog.String("to", to),
			slog.Int("from", chunkSize),
			slog.Int("to_size", next),
		)
		d.recorder.IncChunkShrinks()
		chunkSize = next
	}

	return d.fail(to, fmt.Errorf("chunk size below minimum %d", d.cfg.MinChunkSize))
}

func (d *Driver) sendAll(ctx context.Context, to string, parts []Part, chunkSize int) error {
	for i, part := range parts {
		if i > 0 {
			if err := d.sleep(ctx, d.cfg.InterPartDelay); err != nil {
				return err
			}
		}
		if err := d.sendPart(ctx, to, part); err != nil {
			d.logger.Error("failed to send part",
				slog.String("to", to),
				slog.Int("part", part.Index),
				slog.Int("total", part.Total),
				slog.Int("chunk_size", chunkSize),
				slog.Any("error", err),
			)
			return err
		}
		d.recorder.IncPartsSent()
		d.logger.Debug("sent part",
			slog.String("to", to),
			slog.Int("part", part.Index),
			slog.Int("total", part.Total),
			slog.Int("chars", len([]rune(part.Body))),
		)
	}
	return nil
}

// sendPart sends one part, retrying only while the transport reports rate limiting.
func (d *Driver) sendPart(ctx context.Context, to string, part Part) error {
	err := d.transport.Send(ctx, to, part.Body)
	if err == nil || Classify(err) != KindRateLimited {
		return err
	}

	backoff := d.cfg.RateLimitBackoffBase
	for attempt := 1; attempt <= d.cfg.RateLimitRetries; attempt++ {
		d.logger.Warn("rate limited, backing off",
			slog.String("to", to),
			slog.Int("part", part.Index),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", d.cfg.RateLimitRetries),
			slog.Duration("wait", backoff),
		)
		if sleepErr := d.sleep(ctx, backoff); sleepErr != nil {
			return errors.Join(err, sleepErr)
		}
		d.recorder.IncRateLimitRetries()

		err = d.transport.Send(ctx, to, part.Body)
		if err == nil || Classify(err) != KindRateLimited {
			return err
		}
		backoff *= 2
	}
	return fmt.Errorf("rate limit retries exhausted after %d attempts: %w", d.cfg.RateLimitRetries, err)
}

func (d *Driver) fail(to string, err error) error {
	d.recorder.IncDeliveryFailed()
	d.logger.Error("message delivery failed", slog.String("to", to), slog.Any("error", err))
	return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
