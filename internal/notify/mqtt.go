// Package notify publishes phase and effect change events to an MQTT broker
// for upstream consumers (dashboards, connected clients).
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/aelgin/circadiand/internal/config"
	"github.com/aelgin/circadiand/internal/eventbus"
)

// Notifier bridges the internal event bus to MQTT topics under a prefix:
// <prefix>/phase, <prefix>/effect, <prefix>/schedule.
type Notifier struct {
	client pahomqtt.Client
	prefix string
}

// New creates and connects an MQTT notifier.
func New(cfg config.MQTTConfig) (*Notifier, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c pahomqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("Connected to MQTT broker")
	}
	opts.OnConnectionLost = func(c pahomqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return &Notifier{client: client, prefix: cfg.TopicPrefix}, nil
}

// Attach subscribes the notifier to the event bus.
func (n *Notifier) Attach(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypePhase, n.publish("phase"))
	bus.Subscribe(eventbus.EventTypeEffect, n.publish("effect"))
	bus.Subscribe(eventbus.EventTypeSchedule, n.publish("schedule"))
}

func (n *Notifier) publish(topic string) eventbus.Handler {
	full := n.prefix + "/" + topic
	return func(event eventbus.Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			log.Warn().Err(err).Str("topic", full).Msg("Failed to marshal event payload")
			return
		}
		token := n.client.Publish(full, 0, true, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Warn().Err(err).Str("topic", full).Msg("Failed to publish event")
		}
	}
}

// Close disconnects from the broker.
func (n *Notifier) Close() {
	n.client.Disconnect(250)
}
