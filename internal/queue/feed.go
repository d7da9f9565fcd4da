package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/familyhub/core/internal/infrastructure/config"
	"github.com/familyhub/core/internal/infrastructure/logger"
)

// ConsumerFeed turns broker deliveries into sync triggers for one
// collection key. It satisfies the synchronizer's Feed interface, so a
// deployment with a broker gets push-triggered sync while the merge
// logic stays untouched.
type ConsumerFeed struct {
	cfg        config.QueueConfig
	collection string
	key        string
	logger     *logger.Logger
}

// NewConsumerFeed creates a feed that fires whenever an event for
// (collection, key) arrives. An empty key matches every document in
// the collection.
func NewConsumerFeed(cfg config.QueueConfig, collection, key string, log *logger.Logger) *ConsumerFeed {
	return &ConsumerFeed{
		cfg:        cfg,
		collection: collection,
		key:        key,
		logger:     log.WithComponent("queue"),
	}
}

func (f *ConsumerFeed) Changes(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		backoff := time.Second
		for {
			if ctx.Err() != nil {
				return
			}
			if err := f.consume(ctx, out); err != nil {
				f.logger.Warnw("Consumer disconnected, reconnecting", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}()
	return out
}

func (f *ConsumerFeed) consume(ctx context.Context, out chan<- struct{}) error {
	conn, err := amqp.Dial(f.cfg.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(f.cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}

	// Exclusive auto-delete queue per consumer; every client sees
	// every change event.
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, "", f.cfg.Exchange, false, nil); err != nil {
		return err
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			var event DocumentChangedEvent
			if err := json.Unmarshal(d.Body, &event); err != nil {
				f.logger.Warnw("Dropping malformed change event", "error", err)
				continue
			}
			if event.Collection != f.collection {
				continue
			}
			if f.key != "" && event.Key != f.key {
				continue
			}
			// Coalesce: a trigger already pending is enough.
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}
