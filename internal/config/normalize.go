// internal/config/normalize.go
package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultPollIntervalMs = 5000
	DefaultTimeoutMs      = 1000
	DefaultConnectTimeout = 10000
	DefaultDeviceType     = "default"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	m := &cfg.Gateway.MQTT
	if m.ClientID == "" {
		m.ClientID = "tb-gateway-" + uuid.NewString()
	}
	if m.ConnectTimeoutMs <= 0 {
		m.ConnectTimeoutMs = DefaultConnectTimeout
	}

	if cfg.Gateway.Log.Level == "" {
		cfg.Gateway.Log.Level = "info"
	}

	for ui := range cfg.Gateway.Units {
		u := &cfg.Gateway.Units[ui]

		if u.Source.TimeoutMs <= 0 {
			u.Source.TimeoutMs = DefaultTimeoutMs
		}
		if u.Poll.IntervalMs <= 0 {
			u.Poll.IntervalMs = DefaultPollIntervalMs
		}

		// Device identity defaults match the ThingsBoard connector.
		if u.Device.Name == "" {
			u.Device.Name = fmt.Sprintf("ModbusDevice %d", u.Source.UnitID)
		}
		if u.Device.Type == "" {
			u.Device.Type = DefaultDeviceType
		}

		normalizeTags(u.Timeseries)
		normalizeTags(u.Attributes)
		normalizeTags(u.RPC)
	}
}

func normalizeTags(tags []TagConfig) {
	for i := range tags {
		t := &tags[i]
		if t.RegisterCount == 0 {
			t.RegisterCount = 1
		}
		if t.ByteOrder == "" {
			t.ByteOrder = "LITTLE"
		}
		t.ByteOrder = strings.ToUpper(t.ByteOrder)
	}
}
