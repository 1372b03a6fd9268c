// Package mqtt bridges the in-process event bus to an MQTT broker so
// external systems (home automation, alerting) can follow captures
// without polling the API.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/chronocam/chronocam/internal/config"
	"github.com/chronocam/chronocam/pkg/events"
)

// Publisher forwards every bus event to one MQTT topic as JSON
type Publisher struct {
	client paho.Client
	topic  string
	bus    *events.Bus
	logger interface {
		Debug(string, ...any)
		Info(string, ...any)
		Error(string, error, ...any)
	}
}

// NewPublisher connects to the configured broker
func NewPublisher(cfg config.MQTTConfig, bus *events.Bus, logger interface {
	Debug(string, ...any)
	Info(string, ...any)
	Error(string, error, ...any)
}) (*Publisher, error) {
	broker := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	cli := paho.NewClient(opts)
	token := cli.Connect()
	if ok := token.WaitTimeout(10 * time.Second); !ok {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}

	logger.Info("mqtt publisher connected", "broker", broker, "topic", cfg.Topic)

	return &Publisher{
		client: cli,
		topic:  cfg.Topic,
		bus:    bus,
		logger: logger,
	}, nil
}

// Run subscribes to the bus and forwards events until the context is
// cancelled. A stalled broker can make the bus drop the subscription;
// the bridge then re-subscribes and carries on, losing only the
// events published while it was stalled. Meant to run in its own
// goroutine.
func (p *Publisher) Run(ctx context.Context) {
	for {
		if !p.forward(ctx) {
			return
		}

		p.logger.Info("mqtt bridge fell behind, resubscribing")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// forward drains one bus subscription. It reports true when the bus
// dropped the subscription for not keeping up.
func (p *Publisher) forward(ctx context.Context) bool {
	sub := p.bus.Subscribe()
	defer p.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return false
		case ev, open := <-sub.Events():
			if !open {
				return true
			}
			p.publish(ev)
		}
	}
}

func (p *Publisher) publish(ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("failed to encode mqtt event", err)
		return
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		p.logger.Error("mqtt publish failed", err, "topic", p.topic)
		return
	}
	p.logger.Debug("event published to mqtt", "type", string(ev.Type))
}

// Close disconnects from the broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
