// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/googlehim/thingsboard-gateway/internal/codec"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	if len(cfg.Gateway.Units) == 0 {
		return fmt.Errorf("config: at least one unit required")
	}

	if cfg.Gateway.MQTT.Broker == "" {
		return fmt.Errorf("config: mqtt.broker required")
	}
	if cfg.Gateway.MQTT.QoS > 2 {
		return fmt.Errorf("config: mqtt.qos %d out of range", cfg.Gateway.MQTT.QoS)
	}

	seen := make(map[string]struct{})

	for _, u := range cfg.Gateway.Units {
		if u.ID == "" {
			return fmt.Errorf("config: unit id required")
		}
		if _, dup := seen[u.ID]; dup {
			return fmt.Errorf("config: duplicate unit id %q", u.ID)
		}
		seen[u.ID] = struct{}{}

		if u.Source.Endpoint == "" {
			return fmt.Errorf("unit %q: source.endpoint required", u.ID)
		}

		// device name sanity (ASCII only)
		for i := 0; i < len(u.Device.Name); i++ {
			if u.Device.Name[i] > 0x7F {
				return fmt.Errorf(
					"unit %q: device.name must contain ASCII characters only",
					u.ID,
				)
			}
		}

		// ------------------------------------------------------------
		// TAG SCHEMA VALIDATION (load-time parse boundary)
		// ------------------------------------------------------------

		tags := make(map[string]string)

		for _, g := range u.Groups() {
			for _, t := range g.Tags {
				if err := validateTag(t); err != nil {
					return fmt.Errorf("unit %q: %s tag %q: %w", u.ID, g.Name, t.Tag, err)
				}

				if prev, dup := tags[t.Tag]; dup {
					return fmt.Errorf(
						"unit %q: tag %q defined in both %s and %s",
						u.ID, t.Tag, prev, g.Name,
					)
				}
				tags[t.Tag] = g.Name
			}
		}
	}

	return nil
}

func validateTag(t TagConfig) error {
	if t.Tag == "" {
		return fmt.Errorf("tag name required")
	}
	if t.RegisterCount < 0 {
		return fmt.Errorf("registerCount must be positive")
	}
	if t.Bit != nil && *t.Bit < 0 {
		return fmt.Errorf("bit must be >= 0")
	}

	order, err := codec.ParseByteOrder(t.ByteOrder)
	if err != nil {
		return err
	}

	switch t.FunctionCode {
	case 1, 2:
		// coil data ignores type
		return nil
	case 3, 4:
	default:
		return fmt.Errorf("unsupported functionCode %d", t.FunctionCode)
	}

	dt, err := codec.ParseDataType(t.Type)
	if err != nil {
		return err
	}
	if dt == codec.TypeBit && t.Bit == nil {
		return fmt.Errorf("type bit requires bit")
	}

	return codec.Schema{
		Type:          dt,
		RegisterCount: t.RegisterCount,
		ByteOrder:     order,
		Bit:           t.Bit,
	}.CheckWidth()
}
