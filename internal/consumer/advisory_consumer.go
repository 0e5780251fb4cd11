package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/CyberwizD/smart-agro-advisor/internal/models"
)

// Processor runs the advisory flow for one inbound message.
type Processor interface {
	Process(ctx context.Context, msg models.InboundMessage) error
}

// AdvisoryConsumer feeds queued inbound messages to the processor. Failed
// messages are dead-lettered, never requeued: the sender may already have
// received part of a reply and a second run would message them again.
type AdvisoryConsumer struct {
	base      *BaseConsumer
	processor Processor
	logger    *slog.Logger
}

func NewAdvisoryConsumer(base *BaseConsumer, processor Processor, logger *slog.Logger) *AdvisoryConsumer {
	return &AdvisoryConsumer{
		base:      base,
		processor: processor,
		logger:    logger,
	}
}

func (a *AdvisoryConsumer) Start(ctx context.Context) error {
	return a.base.Start(ctx, a.handleDelivery)
}

func (a *AdvisoryConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) error {
	var inbound models.InboundMessage
	if err := json.Unmarshal(msg.Body, &inbound); err != nil {
		a.logger.Error("failed to unmarshal inbound message", slog.Any("error", err))
		_ = msg.Reject(false)
		return err
	}

	if attempts := deliveryAttempts(&msg); attempts > 0 {
		a.logger.Warn("inbound message redelivered",
			slog.String("request_id", inbound.RequestID),
			slog.Int("attempts", attempts),
		)
	}

	if err := a.processor.Process(ctx, inbound); err != nil {
		a.logger.Error("processing failed, message dead-lettered",
			slog.String("request_id", inbound.RequestID),
			slog.Any("error", err),
		)
		_ = msg.Nack(false, false)
		return err
	}

	return msg.Ack(false)
}

func deliveryAttempts(msg *amqp.Delivery) int {
	if raw, ok := msg.Headers["x-death"]; ok {
		if deaths, ok := raw.([]interface{}); ok && len(deaths) > 0 {
			if table, ok := deaths[0].(amqp.Table); ok {
				if count, ok := table["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}
	if msg.Redelivered {
		return 1
	}
	return 0
}
