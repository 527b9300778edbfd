// internal/gateway/rpc.go
package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/googlehim/thingsboard-gateway/internal/codec"
	"github.com/googlehim/thingsboard-gateway/internal/poller"
	"github.com/googlehim/thingsboard-gateway/internal/publisher"
)

var (
	ErrReadOnly   = errors.New("gateway: tag is read-only")
	ErrBadParams  = errors.New("gateway: bad rpc params")
	errNoResponse = errors.New("gateway: empty rpc response")
)

// Serve registers the unit's rpc handler on its publisher.
func (u *Unit) Serve() error {
	return u.pub.HandleRPC(u.Device(), u.HandleRPC)
}

// HandleRPC answers one request; the method names an rpc tag.
// Without params the tag is read and its value returned.
// With params the value is written and {"success":true} returned.
func (u *Unit) HandleRPC(req publisher.RPCRequest) any {
	log := u.log.With("method", req.Method, "id", req.ID)

	var (
		reply any
		err   error
	)
	if req.HasParams() {
		err = u.write(req.Method, req.Params)
		reply = map[string]bool{"success": true}
	} else {
		reply, err = u.read(req.Method)
	}

	if err != nil {
		log.Warn("rpc failed", "err", err)
		return map[string]string{"error": err.Error()}
	}
	log.Debug("rpc done")
	return reply
}

func (u *Unit) read(tag string) (any, error) {
	set, err := u.poller.ReadRPC(tag)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 || len(set[0].Tags) == 0 {
		return nil, errNoResponse
	}
	if err := set[0].Tags[0].Response.Err; err != nil {
		return nil, err
	}

	out := u.conv.Convert(set)
	if !out.RPC {
		return nil, errNoResponse
	}
	return out.Value, nil
}

func (u *Unit) write(tag string, params json.RawMessage) error {
	tr, ok := u.poller.Tag(tag)
	if !ok {
		return fmt.Errorf("%w: %q", poller.ErrUnknownTag, tag)
	}

	v, err := paramValue(params)
	if err != nil {
		return err
	}

	switch tr.Schema.FunctionCode {
	case 1:
		on, ok := v.Float64()
		if !ok {
			return fmt.Errorf("%w: coil expects bool or number, got %v", ErrBadParams, v.Interface())
		}
		return u.poller.Do(func(c poller.Client) error {
			return c.WriteCoil(tr.Block.Address, on != 0)
		})

	case 3:
		regs, err := codec.Encode(v, tr.Schema.Codec())
		if err != nil {
			return err
		}
		return u.poller.Do(func(c poller.Client) error {
			return c.WriteRegisters(tr.Block.Address, regs)
		})

	case 2, 4:
		return fmt.Errorf("%w: fc %d", ErrReadOnly, tr.Schema.FunctionCode)
	}
	return fmt.Errorf("gateway: unsupported function code %d", tr.Schema.FunctionCode)
}

// paramValue accepts a bare JSON value or {"value": ...}.
func paramValue(raw json.RawMessage) (codec.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var x any
	if err := dec.Decode(&x); err != nil {
		return codec.Null(), fmt.Errorf("%w: %v", ErrBadParams, err)
	}
	if m, ok := x.(map[string]any); ok {
		inner, found := m["value"]
		if !found {
			return codec.Null(), fmt.Errorf("%w: object without value", ErrBadParams)
		}
		x = inner
	}

	switch t := x.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return codec.IntValue(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return codec.Null(), fmt.Errorf("%w: %v", ErrBadParams, err)
		}
		return codec.FloatValue(f), nil
	case bool:
		return codec.BoolValue(t), nil
	case string:
		return codec.StringValue(t), nil
	}
	return codec.Null(), fmt.Errorf("%w: unsupported value %v", ErrBadParams, x)
}
