// internal/publisher/publisher_test.go
package publisher

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlehim/thingsboard-gateway/internal/codec"
	"github.com/googlehim/thingsboard-gateway/internal/converter"
)

// ---- fake broker ----

type message struct {
	topic   string
	payload string
}

type fakeBroker struct {
	mu       sync.Mutex
	sent     []message
	subs     map[string]func(string, []byte)
	subCalls int
	failOn   string
	closed   bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subs: map[string]func(string, []byte){}}
}

func (f *fakeBroker) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if topic == f.failOn {
		return errors.New("broker down")
	}
	f.sent = append(f.sent, message{topic: topic, payload: string(payload)})
	return nil
}

func (f *fakeBroker) Subscribe(topic string, h func(string, []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subCalls++
	f.subs[topic] = h
	return nil
}

func (f *fakeBroker) Close() { f.closed = true }

func (f *fakeBroker) deliver(topic, payload string) {
	f.mu.Lock()
	h := f.subs[topic]
	f.mu.Unlock()
	h(topic, []byte(payload))
}

// ---- tests ----

var ts = time.UnixMilli(1700000000123)

func sampleResult() converter.Result {
	return converter.Result{
		DeviceName: "Boiler",
		DeviceType: "default",
		Telemetry: []converter.Entry{
			{Tag: "temp", Value: codec.FloatValue(21.5)},
			{Tag: "alarm", Value: codec.BoolValue(false)},
			{Tag: "broken", Value: codec.Null()},
		},
		Attributes: []converter.Entry{
			{Tag: "serial", Value: codec.StringValue("SN-01")},
		},
	}
}

func TestPublishResult_GatewayFormat(t *testing.T) {
	fb := newFakeBroker()
	p := New(fb, nil)

	require.NoError(t, p.PublishResult(sampleResult(), ts))
	require.Len(t, fb.sent, 2)

	assert.Equal(t, TopicTelemetry, fb.sent[0].topic)
	assert.JSONEq(t,
		`{"Boiler":[{"ts":1700000000123,"values":{"temp":21.5,"alarm":false,"broken":null}}]}`,
		fb.sent[0].payload)

	assert.Equal(t, TopicAttributes, fb.sent[1].topic)
	assert.JSONEq(t, `{"Boiler":{"serial":"SN-01"}}`, fb.sent[1].payload)
}

func TestPublishResult_PreservesTagOrder(t *testing.T) {
	fb := newFakeBroker()
	p := New(fb, nil)

	require.NoError(t, p.PublishResult(sampleResult(), ts))
	assert.Contains(t, fb.sent[0].payload, `"values":{"temp":21.5,"alarm":false,"broken":null}`)
}

func TestPublishResult_NonFiniteValueDoesNotDropSiblings(t *testing.T) {
	fb := newFakeBroker()
	p := New(fb, nil)

	res := converter.Result{
		DeviceName: "Boiler",
		Telemetry: []converter.Entry{
			{Tag: "good", Value: codec.UintValue(7)},
			{Tag: "sensor", Value: codec.FloatValue(math.NaN())},
			{Tag: "spike", Value: codec.FloatValue(math.Inf(-1))},
		},
	}

	require.NoError(t, p.PublishResult(res, ts))
	require.Len(t, fb.sent, 1)
	assert.JSONEq(t,
		`{"Boiler":[{"ts":1700000000123,"values":{"good":7,"sensor":null,"spike":null}}]}`,
		fb.sent[0].payload)
}

func TestPublishResult_SkipsEmptyBuckets(t *testing.T) {
	fb := newFakeBroker()
	p := New(fb, nil)

	res := sampleResult()
	res.Telemetry = []converter.Entry{}

	require.NoError(t, p.PublishResult(res, ts))
	require.Len(t, fb.sent, 1)
	assert.Equal(t, TopicAttributes, fb.sent[0].topic)

	res.Attributes = nil
	require.NoError(t, p.PublishResult(res, ts))
	assert.Len(t, fb.sent, 1)
}

func TestPublishResult_FailureDoesNotStopOtherBucket(t *testing.T) {
	fb := newFakeBroker()
	fb.failOn = TopicTelemetry
	p := New(fb, nil)

	err := p.PublishResult(sampleResult(), ts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telemetry device=Boiler")

	require.Len(t, fb.sent, 1)
	assert.Equal(t, TopicAttributes, fb.sent[0].topic)
}

func TestConnectDisconnect(t *testing.T) {
	fb := newFakeBroker()
	p := New(fb, nil)

	require.NoError(t, p.Connect("Boiler", "heater"))
	require.NoError(t, p.Disconnect("Boiler"))

	require.Len(t, fb.sent, 2)
	assert.Equal(t, TopicConnect, fb.sent[0].topic)
	assert.JSONEq(t, `{"device":"Boiler","type":"heater"}`, fb.sent[0].payload)
	assert.Equal(t, TopicDisconnect, fb.sent[1].topic)
	assert.JSONEq(t, `{"device":"Boiler"}`, fb.sent[1].payload)

	fb.failOn = TopicConnect
	assert.Error(t, p.Connect("Boiler", "heater"))
}

func TestHandleRPC_RoutesByDevice(t *testing.T) {
	fb := newFakeBroker()
	p := New(fb, nil)

	var got []RPCRequest
	require.NoError(t, p.HandleRPC("Boiler", func(req RPCRequest) any {
		got = append(got, req)
		return 42
	}))
	require.NoError(t, p.HandleRPC("Pump", func(req RPCRequest) any {
		t.Fatalf("wrong device handler called")
		return nil
	}))
	assert.Equal(t, 1, fb.subCalls, "rpc topic subscribed once")

	fb.deliver(TopicRPC, `{"device":"Boiler","data":{"id":7,"method":"setpoint"}}`)

	require.Len(t, got, 1)
	assert.Equal(t, "Boiler", got[0].Device)
	assert.Equal(t, "setpoint", got[0].Method)
	assert.False(t, got[0].HasParams())

	require.Len(t, fb.sent, 1)
	assert.Equal(t, TopicRPC, fb.sent[0].topic)
	assert.JSONEq(t, `{"device":"Boiler","id":7,"data":42}`, fb.sent[0].payload)
}

func TestHandleRPC_NonFiniteReplyIsNull(t *testing.T) {
	fb := newFakeBroker()
	p := New(fb, nil)

	require.NoError(t, p.HandleRPC("Boiler", func(RPCRequest) any {
		return codec.FloatValue(math.Inf(1))
	}))

	fb.deliver(TopicRPC, `{"device":"Boiler","data":{"id":3,"method":"setpoint"}}`)

	require.Len(t, fb.sent, 1)
	assert.JSONEq(t, `{"device":"Boiler","id":3,"data":null}`, fb.sent[0].payload)
}

func TestHandleRPC_IgnoresRepliesAndUnknownDevices(t *testing.T) {
	fb := newFakeBroker()
	p := New(fb, nil)

	calls := 0
	require.NoError(t, p.HandleRPC("Boiler", func(RPCRequest) any {
		calls++
		return nil
	}))

	fb.deliver(TopicRPC, `{"device":"Boiler","id":7,"data":42}`)
	fb.deliver(TopicRPC, `{"device":"Other","data":{"id":1,"method":"x"}}`)
	fb.deliver(TopicRPC, `not json`)

	assert.Zero(t, calls)
	assert.Empty(t, fb.sent)
}

func TestRPCRequest_HasParams(t *testing.T) {
	cases := map[string]bool{
		``:        false,
		`null`:    false,
		` null `:  false,
		`12.5`:    true,
		`"text"`:  true,
		`{"v":1}`: true,
		`false`:   true,
	}
	for raw, want := range cases {
		r := RPCRequest{Params: json.RawMessage(raw)}
		assert.Equal(t, want, r.HasParams(), "params %q", raw)
	}
}

func TestClose(t *testing.T) {
	fb := newFakeBroker()
	New(fb, nil).Close()
	assert.True(t, fb.closed)
}
