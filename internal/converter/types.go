// internal/converter/types.go
package converter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/googlehim/thingsboard-gateway/internal/codec"
	"github.com/googlehim/thingsboard-gateway/internal/config"
)

// Group names a tag group of a device configuration.
type Group string

const (
	GroupTimeseries Group = config.GroupTimeseries
	GroupAttributes Group = config.GroupAttributes
	GroupRPC        Group = config.GroupRPC
)

// bucketFor maps a group onto its result bucket. rpc has none.
var bucketFor = map[Group]string{
	GroupTimeseries: "telemetry",
	GroupAttributes: "attributes",
}

// TagSchema is the immutable decode configuration of one tag.
type TagSchema struct {
	Type          codec.DataType
	FunctionCode  uint8
	RegisterCount float64
	ByteOrder     codec.ByteOrder
	Bit           *int

	// 0 means unset.
	Divider    float64
	Multiplier float64
}

// Codec is the decoder view of the schema.
func (s TagSchema) Codec() codec.Schema {
	return codec.Schema{
		Type:          s.Type,
		RegisterCount: s.RegisterCount,
		ByteOrder:     s.ByteOrder,
		Bit:           s.Bit,
	}
}

// SchemaFromConfig parses a configured tag into a TagSchema.
// Coil tags carry no type.
func SchemaFromConfig(t config.TagConfig) (TagSchema, error) {
	order, err := codec.ParseByteOrder(t.ByteOrder)
	if err != nil {
		return TagSchema{}, fmt.Errorf("tag %q: %w", t.Tag, err)
	}

	s := TagSchema{
		FunctionCode:  t.FunctionCode,
		RegisterCount: t.RegisterCount,
		ByteOrder:     order,
		Bit:           t.Bit,
		Divider:       t.Divider,
		Multiplier:    t.Multiplier,
	}

	if t.FunctionCode == 3 || t.FunctionCode == 4 {
		s.Type, err = codec.ParseDataType(t.Type)
		if err != nil {
			return s, fmt.Errorf("tag %q: %w", t.Tag, err)
		}
	}
	return s, nil
}

// Response is the raw outcome of reading one tag.
// Exactly one of Bits or Registers is used depending on FC.
type Response struct {
	Bits      []bool   // FC 1,2
	Registers []uint16 // FC 3,4

	// Err marks a failed read.
	Err error
}

// TagData is one tag of a response set: schema plus raw response.
type TagData struct {
	Tag      string
	Schema   TagSchema
	Response Response
}

// GroupData is one ordered group of tags.
type GroupData struct {
	Group Group
	Tags  []TagData
}

// ResponseSet is everything read for one device in one cycle.
type ResponseSet []GroupData

// DeviceIdentity is resolved once per converter.
type DeviceIdentity struct {
	Name string
	Type string
}

// ResolveIdentity applies the connector defaults.
func ResolveIdentity(name, typ string, unitID uint8) DeviceIdentity {
	if name == "" {
		name = fmt.Sprintf("ModbusDevice %d", unitID)
	}
	if typ == "" {
		typ = config.DefaultDeviceType
	}
	return DeviceIdentity{Name: name, Type: typ}
}

// Entry is one {tag: value} pair of a bucket.
type Entry struct {
	Tag   string
	Value codec.Value
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return Entries{e}.MarshalJSON()
}

// Entries renders as one JSON object, keys in entry order.
type Entries []Entry

func (es Entries) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range es {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Tag)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result is the per-cycle output for the publisher.
// It is built fresh by every Convert call.
type Result struct {
	DeviceName string  `json:"deviceName"`
	DeviceType string  `json:"deviceType"`
	Telemetry  []Entry `json:"telemetry"`
	Attributes []Entry `json:"attributes"`
}

// Outcome is what Convert returns: a Result, or a bare value for rpc.
type Outcome struct {
	Result Result

	// RPC reports that the set hit an rpc tag; Value then holds its value.
	RPC   bool
	Value codec.Value
}
