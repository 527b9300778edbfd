// internal/publisher/mqtt.go
package publisher

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// pahoBroker implements broker over paho.
// Subscriptions are remembered and restored after every reconnect.
type pahoBroker struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	log     *slog.Logger

	mu   sync.Mutex
	subs map[string]mqtt.MessageHandler
}

func (b *pahoBroker) Publish(topic string, payload []byte) error {
	return b.wait(b.client.Publish(topic, b.qos, false, payload))
}

func (b *pahoBroker) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	mh := func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	}

	b.mu.Lock()
	b.subs[topic] = mh
	b.mu.Unlock()

	return b.wait(b.client.Subscribe(topic, b.qos, mh))
}

func (b *pahoBroker) Close() {
	b.client.Disconnect(250)
}

// onConnect restores subscriptions on the new session.
func (b *pahoBroker) onConnect(c mqtt.Client) {
	b.log.Info("mqtt connected")

	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, mh := range b.subs {
		if t := c.Subscribe(topic, b.qos, mh); t.WaitTimeout(b.timeout) && t.Error() != nil {
			b.log.Error("mqtt resubscribe failed", "topic", topic, "err", t.Error())
		}
	}
}

func (b *pahoBroker) wait(t mqtt.Token) error {
	if !t.WaitTimeout(b.timeout) {
		return fmt.Errorf("mqtt: timeout after %s", b.timeout)
	}
	return t.Error()
}
