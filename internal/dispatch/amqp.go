package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/CyberwizD/smart-agro-advisor/internal/consumer"
	"github.com/CyberwizD/smart-agro-advisor/internal/models"
)

// Publisher is the subset of *amqp.Channel used for publishing.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPDispatcher publishes inbound messages for the worker command to consume.
type AMQPDispatcher struct {
	mu       sync.Mutex
	ch       Publisher
	exchange string
	logger   *slog.Logger
}

// NewAMQPDispatcher opens a channel on conn and declares the advisory topology.
func NewAMQPDispatcher(conn *amqp.Connection, queue, dlq string, logger *slog.Logger) (*AMQPDispatcher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := consumer.DeclareTopology(ch, consumer.Exchange, queue, dlq); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue setup failed: %w", err)
	}
	return NewAMQPDispatcherWithPublisher(ch, logger), nil
}

func NewAMQPDispatcherWithPublisher(ch Publisher, logger *slog.Logger) *AMQPDispatcher {
	return &AMQPDispatcher{
		ch:       ch,
		exchange: consumer.Exchange,
		logger:   logger,
	}
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, msg models.InboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	// amqp.Channel is not safe for concurrent publishing.
	d.mu.Lock()
	defer d.mu.Unlock()
	err = d.ch.Publish(d.exchange, consumer.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.RequestID,
		Timestamp:    msg.ReceivedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish inbound message: %w", err)
	}
	d.logger.Debug("inbound message queued", slog.String("request_id", msg.RequestID))
	return nil
}
