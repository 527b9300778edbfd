// internal/publisher/types.go
package publisher

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/googlehim/thingsboard-gateway/internal/converter"
)

// ThingsBoard gateway API topics.
const (
	TopicTelemetry  = "v1/gateway/telemetry"
	TopicAttributes = "v1/gateway/attributes"
	TopicConnect    = "v1/gateway/connect"
	TopicDisconnect = "v1/gateway/disconnect"
	TopicRPC        = "v1/gateway/rpc"
)

// broker is the exact contract the publisher uses.
type broker interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	Close()
}

// Publisher delivers device results to ThingsBoard.
type Publisher interface {
	PublishResult(res converter.Result, ts time.Time) error
	Connect(device, deviceType string) error
	Disconnect(device string) error
	HandleRPC(device string, h RPCHandler) error
	Close()
}

// RPCRequest is the data part of a gateway rpc message.
type RPCRequest struct {
	Device string          `json:"-"`
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// HasParams reports whether the request carries a value to write.
func (r RPCRequest) HasParams() bool {
	p := bytes.TrimSpace(r.Params)
	return len(p) > 0 && !bytes.Equal(p, []byte("null"))
}

// RPCHandler answers one request. The return value becomes the reply data.
type RPCHandler func(req RPCRequest) any

type rpcEnvelope struct {
	Device string          `json:"device"`
	Data   json.RawMessage `json:"data"`
}

type rpcReply struct {
	Device string `json:"device"`
	ID     int64  `json:"id"`
	Data   any    `json:"data"`
}

type telemetryRecord struct {
	Ts     int64             `json:"ts"`
	Values converter.Entries `json:"values"`
}

type deviceEvent struct {
	Device string `json:"device"`
	Type   string `json:"type,omitempty"`
}
