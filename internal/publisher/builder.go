// internal/publisher/builder.go
package publisher

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	cfg "github.com/googlehim/thingsboard-gateway/internal/config"
)

// Build connects to the ThingsBoard broker and returns a ready Publisher.
// Assumes config has already been validated and normalized.
func Build(m cfg.MQTTConfig, logger *slog.Logger) (Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("broker", m.Broker)
	timeout := time.Duration(m.ConnectTimeoutMs) * time.Millisecond

	b := &pahoBroker{
		qos:     m.QoS,
		timeout: timeout,
		log:     log,
		subs:    make(map[string]mqtt.MessageHandler),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.Broker)
	opts.SetClientID(m.ClientID)
	opts.SetUsername(m.AccessToken) // ThingsBoard authenticates by token as username
	opts.SetCleanSession(true)
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(timeout)
	opts.SetMaxReconnectInterval(5 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "err", err)
	})

	b.client = mqtt.NewClient(opts)

	if err := b.wait(b.client.Connect()); err != nil {
		return nil, fmt.Errorf("publisher: connect %s: %w", m.Broker, err)
	}

	return New(b, logger), nil
}
