// Package events bridges in-process lifecycle events onto RabbitMQ so
// downstream services (report timelines, volunteer history, analytics)
// can react without coupling to the engine.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/strayaid/rescuedispatch/config"
	coreevents "github.com/strayaid/rescuedispatch/core/events"
	"github.com/strayaid/rescuedispatch/infra/logger"
	"github.com/strayaid/rescuedispatch/internal/eventbus"
)

// Routing keys per event type.
const (
	keyAssignmentCreated   = "assignment.created"
	keyStatusChanged       = "assignment.status_changed"
	keyAssignmentCompleted = "assignment.completed"
)

// channelAPI is the subset of amqp.Channel the bridge uses.
type channelAPI interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPBridge subscribes to the event bus and republishes lifecycle events
// to a topic exchange.
type AMQPBridge struct {
	conn     *amqp.Connection
	channel  channelAPI
	exchange string
	log      logger.Logger
	done     chan struct{}
}

// NewAMQPBridge connects to the broker and declares the exchange.
func NewAMQPBridge(cfg config.EventsConfig, log logger.Logger) (*AMQPBridge, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &AMQPBridge{
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
		log:      log,
		done:     make(chan struct{}),
	}, nil
}

// Run consumes events from the bus until the channel closes or Stop is
// called. Intended to run in its own goroutine.
func (b *AMQPBridge) Run(bus eventbus.EventBus) {
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)
	for {
		select {
		case <-b.done:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := b.publishEvent(ev); err != nil {
				b.log.Errorf("amqp publish: %v", err)
			}
		}
	}
}

func (b *AMQPBridge) publishEvent(ev eventbus.Event) error {
	var key string
	switch ev.(type) {
	case coreevents.AssignmentCreated:
		key = keyAssignmentCreated
	case coreevents.StatusChanged:
		key = keyStatusChanged
	case coreevents.AssignmentCompleted:
		key = keyAssignmentCompleted
	default:
		return nil
	}
	return b.publish(context.Background(), key, ev)
}

func (b *AMQPBridge) publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = b.channel.PublishWithContext(
		ctx,
		b.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			MessageId:    fmt.Sprintf("%d", time.Now().UnixNano()),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	b.log.Debugw("event published", map[string]any{"routing_key": routingKey, "exchange": b.exchange})
	return nil
}

// Stop ends the Run loop and closes the connection.
func (b *AMQPBridge) Stop() {
	close(b.done)
	if b.channel != nil {
		_ = b.channel.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
}
