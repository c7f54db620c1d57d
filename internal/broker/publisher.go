// Package broker publishes shipment lifecycle events to RabbitMQ so
// downstream systems (BI, notifications) can react without polling the
// database.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gvanweelden/fulfilsync/internal/shipment"
	"github.com/gvanweelden/fulfilsync/pkg/metrics"
)

const (
	exchangeName      = "fulfilsync.topic"
	routingKeyApplied = "shipment.applied"
	confirmTimeout    = 10 * time.Second
)

// Publisher is the RabbitMQ client behind shipment.Publisher. Publisher
// Confirms are enabled: Publish blocks until the broker acked the message.
type Publisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	logger     *slog.Logger
	connClosed chan *amqp.Error
	chanClosed chan *amqp.Error
	closeOnce  sync.Once
	healthy    atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewPublisher(url string, l *slog.Logger) (*Publisher, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := c.Channel()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("open RabbitMQ channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("declare topic exchange: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("activate publisher confirms: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		conn:       c,
		channel:    ch,
		logger:     l,
		connClosed: make(chan *amqp.Error, 1),
		chanClosed: make(chan *amqp.Error, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	p.healthy.Store(true)
	metrics.HealthStatus.Set(1)

	p.conn.NotifyClose(p.connClosed)
	p.channel.NotifyClose(p.chanClosed)

	go func() {
		select {
		case err := <-p.connClosed:
			p.healthy.Store(false)
			metrics.HealthStatus.Set(0)
			l.Warn("RabbitMQ connection closed", "error", err)
		case err := <-p.chanClosed:
			p.healthy.Store(false)
			metrics.HealthStatus.Set(0)
			l.Warn("RabbitMQ channel closed", "error", err)
		case <-p.ctx.Done():
			return
		}
	}()

	l.Info("Connected to RabbitMQ", "exchange", exchangeName)
	return p, nil
}

// PublishShipmentApplied broadcasts one applied event and waits for the
// broker's confirmation.
func (p *Publisher) PublishShipmentApplied(ctx context.Context, e shipment.AppliedEvent) error {
	if !p.IsHealthy() {
		return fmt.Errorf("broker connection is closed")
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("serialize shipment event: %w", err)
	}

	deferred, err := p.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		exchangeName,
		routingKeyApplied,
		false,
		false,
		amqp.Publishing{
			Headers: amqp.Table{
				"order_name": e.OrderName,
			},
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish shipment event: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-deferred.Done():
		if !deferred.Acked() {
			return fmt.Errorf("RabbitMQ NACK received: message not persisted")
		}
		return nil
	case <-time.After(confirmTimeout):
		return fmt.Errorf("publisher confirm timeout")
	}
}

// IsHealthy reports whether connection and channel are still open.
func (p *Publisher) IsHealthy() bool {
	return p.healthy.Load()
}

// Close shuts the channel and connection down once.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.logger.Info("Terminating RabbitMQ publisher")
		p.cancel()
		if p.channel != nil {
			p.channel.Close()
		}
		if p.conn != nil {
			p.conn.Close()
		}
	})
	return nil
}

// Noop satisfies shipment.Publisher when no broker URL is configured.
type Noop struct{}

func (Noop) PublishShipmentApplied(context.Context, shipment.AppliedEvent) error { return nil }
