// internal/converter/converter.go
package converter

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/googlehim/thingsboard-gateway/internal/codec"
)

// ErrUnsupportedFunction means the tag's function code has no decoder.
var ErrUnsupportedFunction = errors.New("converter: unsupported function code")

// Converter turns raw Modbus responses into device results.
// It holds no mutable state; Convert may be called concurrently.
type Converter struct {
	identity DeviceIdentity
	log      *slog.Logger
}

// New creates a converter bound to one device identity.
func New(identity DeviceIdentity, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		identity: identity,
		log:      logger.With("device", identity.Name),
	}
}

// Identity returns the device identity attached to every result.
func (c *Converter) Identity() DeviceIdentity { return c.identity }

// Convert decodes every tag of the set.
// A failed tag yields a null value and never aborts its siblings.
// The first rpc tag short-circuits: its value is returned alone.
func (c *Converter) Convert(set ResponseSet) Outcome {
	res := Result{
		DeviceName: c.identity.Name,
		DeviceType: c.identity.Type,
		Telemetry:  []Entry{},
		Attributes: []Entry{},
	}

	for _, g := range set {
		bucket, ok := bucketFor[g.Group]
		if !ok && g.Group != GroupRPC {
			c.log.Warn("unknown tag group, skipping", "group", string(g.Group), "tags", len(g.Tags))
			continue
		}

		for _, td := range g.Tags {
			v := c.convertTag(td)

			if g.Group == GroupRPC {
				return Outcome{RPC: true, Value: v}
			}

			c.log.Debug("decoded", "bucket", bucket, "tag", td.Tag, "value", v.Interface())

			e := Entry{Tag: td.Tag, Value: v}
			if bucket == "telemetry" {
				res.Telemetry = append(res.Telemetry, e)
			} else {
				res.Attributes = append(res.Attributes, e)
			}
		}
	}

	return Outcome{Result: res}
}

// convertTag contains every failure of a single tag.
func (c *Converter) convertTag(td TagData) codec.Value {
	if td.Response.Err != nil {
		c.log.Error("read failed", "tag", td.Tag, "fc", td.Schema.FunctionCode, "err", td.Response.Err)
		return codec.Null()
	}

	v, err := DecodeTag(td.Schema, td.Response)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFunction) {
			c.log.Warn("tag skipped", "tag", td.Tag, "err", err)
		} else {
			c.log.Error("decode failed", "tag", td.Tag, "type", td.Schema.Type.String(), "err", err)
		}
		return codec.Null()
	}
	return v
}

// DecodeTag decodes one successful response under its schema.
func DecodeTag(s TagSchema, r Response) (codec.Value, error) {
	switch s.FunctionCode {
	case 1, 2:
		return selectBit(s, r.Bits)

	case 3, 4:
		v, err := codec.Decode(r.Registers, s.Codec())
		if err != nil {
			return codec.Null(), err
		}
		v, err = scale(v, s.Divider, s.Multiplier)
		if err != nil {
			return codec.Null(), err
		}
		if x, ok := v.Float(); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
			return codec.Null(), fmt.Errorf("%w: %v is not finite", codec.ErrDecode, x)
		}
		return v, nil
	}
	return codec.Null(), fmt.Errorf("%w: %d", ErrUnsupportedFunction, s.FunctionCode)
}

// selectBit indexes coil data. BIG reverses the sequence first.
func selectBit(s TagSchema, bits []bool) (codec.Value, error) {
	idx := 0
	if s.Bit != nil {
		idx = *s.Bit
	}
	if idx < 0 || idx >= len(bits) {
		return codec.Null(), fmt.Errorf("%w: bit %d out of range [0,%d)", codec.ErrDecode, idx, len(bits))
	}

	if s.ByteOrder != codec.Little {
		idx = len(bits) - 1 - idx
	}
	return codec.BoolValue(bits[idx]), nil
}

// scale divides then multiplies. Unset factors are skipped.
// An integer times a whole multiplier stays an integer; anything else is a float.
func scale(v codec.Value, divider, multiplier float64) (codec.Value, error) {
	if divider == 0 && multiplier == 0 {
		return v, nil
	}

	if divider == 0 && multiplier == math.Trunc(multiplier) && math.Abs(multiplier) < 1<<53 {
		if r, ok := scaleInt(v, int64(multiplier)); ok {
			return r, nil
		}
	}

	x, ok := v.Float64()
	if !ok {
		return codec.Null(), fmt.Errorf("%w: cannot scale %v", codec.ErrDecode, v.Interface())
	}
	if divider != 0 {
		x /= divider
	}
	if multiplier != 0 {
		x *= multiplier
	}
	return codec.FloatValue(x), nil
}

// scaleInt multiplies exactly. ok is false for non-integers and on overflow.
func scaleInt(v codec.Value, m int64) (codec.Value, bool) {
	if i, ok := v.Int(); ok {
		p := i * m
		if i != 0 && p/i != m {
			return codec.Null(), false
		}
		return codec.IntValue(p), true
	}
	if u, ok := v.Uint(); ok && m >= 0 {
		p := u * uint64(m)
		if u != 0 && p/u != uint64(m) {
			return codec.Null(), false
		}
		return codec.UintValue(p), true
	}
	return codec.Null(), false
}
