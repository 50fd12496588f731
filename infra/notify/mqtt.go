// Package notify delivers volunteer notifications over MQTT. Messages are
// published as JSON to <prefix>/<recipient-id> and picked up by the mobile
// gateway.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/strayaid/rescuedispatch/config"
	"github.com/strayaid/rescuedispatch/infra/logger"
)

type client interface {
	IsConnected() bool
	Disconnect(uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTNotifier implements dispatch.Notifier on a paho MQTT client.
type MQTTNotifier struct {
	client client
	prefix string
	log    logger.Logger
}

// message is the wire envelope delivered to the gateway.
type message struct {
	Kind    string         `json:"kind"`
	SentAt  time.Time      `json:"sent_at"`
	Payload map[string]any `json:"payload"`
}

// NewMQTTNotifier connects to the broker and returns a ready notifier.
func NewMQTTNotifier(cfg config.NotifierConfig, log logger.Logger) (*MQTTNotifier, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	c := mqtt.NewClient(opts)
	token := c.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return &MQTTNotifier{client: c, prefix: cfg.TopicPrefix, log: log}, nil
}

// Send publishes one notification. QoS 1 so the gateway sees it at least once.
func (n *MQTTNotifier) Send(ctx context.Context, recipientID, kind string, payload map[string]any) error {
	body, err := json.Marshal(message{Kind: kind, SentAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	topic := fmt.Sprintf("%s/%s", n.prefix, recipientID)
	token := n.client.Publish(topic, 1, false, body)
	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	n.log.Debugw("notification sent", map[string]any{"topic": topic, "kind": kind})
	return nil
}

// Close disconnects from the broker.
func (n *MQTTNotifier) Close() {
	if n.client.IsConnected() {
		n.client.Disconnect(250)
	}
}
