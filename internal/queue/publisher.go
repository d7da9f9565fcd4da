package queue

import (
	"context"
	"encoding/json"
	"fmt"
	stdsync "sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/familyhub/core/internal/infrastructure/config"
	"github.com/familyhub/core/internal/infrastructure/logger"
)

// Publisher fans document change events out over an AMQP fanout
// exchange. Publishing is best-effort: a broker failure is logged and
// swallowed so the write path never depends on the broker being up.
type Publisher struct {
	cfg    config.QueueConfig
	logger *logger.Logger

	mu   stdsync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher creates a publisher. A disabled queue config yields a
// nil publisher; (*Publisher).Publish is nil-safe.
func NewPublisher(cfg config.QueueConfig, log *logger.Logger) *Publisher {
	if !cfg.Enabled {
		return nil
	}
	return &Publisher{cfg: cfg, logger: log.WithComponent("queue")}
}

// Publish emits a change event. Errors never propagate to the caller.
func (p *Publisher) Publish(ctx context.Context, event DocumentChangedEvent) {
	if p == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warnw("Failed to encode change event", "error", err)
		return
	}

	if err := p.publish(ctx, body); err != nil {
		p.logger.Warnw("Failed to publish change event", "error", err)
		// One reconnect attempt; the broker may have restarted.
		p.reset()
		if err := p.publish(ctx, body); err != nil {
			p.logger.Warnw("Change event dropped", "collection", event.Collection, "key", event.Key, "error", err)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, body []byte) error {
	ch, err := p.channel()
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		p.cfg.Exchange, // exchange
		"",             // routing key, fanout ignores it
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		return p.ch, nil
	}

	conn, err := amqp.Dial(p.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.conn = conn
	p.ch = ch
	return ch, nil
}

func (p *Publisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.reset()
	return nil
}
