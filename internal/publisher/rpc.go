// internal/publisher/rpc.go
package publisher

import (
	"encoding/json"
	"fmt"
)

// HandleRPC routes gateway rpc requests addressed to device onto h.
// The rpc topic is subscribed once, on the first registration.
func (p *mqttPublisher) HandleRPC(device string, h RPCHandler) error {
	p.mu.Lock()
	p.handlers[device] = h
	need := !p.subscribed
	p.subscribed = true
	p.mu.Unlock()

	if !need {
		return nil
	}

	if err := p.b.Subscribe(TopicRPC, p.dispatch); err != nil {
		p.mu.Lock()
		p.subscribed = false
		p.mu.Unlock()
		return fmt.Errorf("publisher: subscribe %s: %w", TopicRPC, err)
	}
	return nil
}

func (p *mqttPublisher) dispatch(topic string, payload []byte) {
	var env rpcEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		p.log.Warn("rpc: bad request", "topic", topic, "err", err)
		return
	}

	// Replies share the topic; they carry no method.
	var req RPCRequest
	if err := json.Unmarshal(env.Data, &req); err != nil || req.Method == "" {
		return
	}
	req.Device = env.Device

	p.mu.RLock()
	h, ok := p.handlers[env.Device]
	p.mu.RUnlock()
	if !ok {
		p.log.Debug("rpc: no handler", "device", env.Device, "method", req.Method)
		return
	}

	reply := rpcReply{Device: env.Device, ID: req.ID, Data: h(req)}
	if err := p.send(TopicRPC, reply); err != nil {
		p.log.Error("rpc: reply failed", "device", env.Device, "id", req.ID, "err", err)
	}
}
