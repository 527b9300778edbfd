// internal/publisher/publisher.go
package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/googlehim/thingsboard-gateway/internal/converter"
)

type mqttPublisher struct {
	b   broker
	log *slog.Logger

	mu         sync.RWMutex
	handlers   map[string]RPCHandler
	subscribed bool
}

// New wraps a broker connection. Build wires the real one.
func New(b broker, logger *slog.Logger) Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &mqttPublisher{
		b:        b,
		log:      logger,
		handlers: make(map[string]RPCHandler),
	}
}

// PublishResult sends the telemetry and attribute buckets of one result.
// Empty buckets are not sent. A failed bucket does not stop the other.
func (p *mqttPublisher) PublishResult(res converter.Result, ts time.Time) error {
	var errs []string

	if len(res.Telemetry) > 0 {
		msg := map[string][]telemetryRecord{
			res.DeviceName: {{Ts: ts.UnixMilli(), Values: converter.Entries(res.Telemetry)}},
		}
		if err := p.send(TopicTelemetry, msg); err != nil {
			errs = append(errs, fmt.Sprintf(
				"publisher: telemetry device=%s entries=%d err=%v",
				res.DeviceName, len(res.Telemetry), err,
			))
		}
	}

	if len(res.Attributes) > 0 {
		msg := map[string]converter.Entries{
			res.DeviceName: converter.Entries(res.Attributes),
		}
		if err := p.send(TopicAttributes, msg); err != nil {
			errs = append(errs, fmt.Sprintf(
				"publisher: attributes device=%s entries=%d err=%v",
				res.DeviceName, len(res.Attributes), err,
			))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}
	return nil
}

// Connect announces a device to ThingsBoard.
func (p *mqttPublisher) Connect(device, deviceType string) error {
	if err := p.send(TopicConnect, deviceEvent{Device: device, Type: deviceType}); err != nil {
		return fmt.Errorf("publisher: connect device=%s: %w", device, err)
	}
	return nil
}

// Disconnect marks a device offline.
func (p *mqttPublisher) Disconnect(device string) error {
	if err := p.send(TopicDisconnect, deviceEvent{Device: device}); err != nil {
		return fmt.Errorf("publisher: disconnect device=%s: %w", device, err)
	}
	return nil
}

// Close drops the broker connection.
func (p *mqttPublisher) Close() {
	p.b.Close()
}

func (p *mqttPublisher) send(topic string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	p.log.Debug("publish", "topic", topic, "bytes", len(payload))
	return p.b.Publish(topic, payload)
}
