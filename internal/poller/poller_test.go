// internal/poller/poller_test.go
package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/googlehim/thingsboard-gateway/internal/codec"
	cfg "github.com/googlehim/thingsboard-gateway/internal/config"
	"github.com/googlehim/thingsboard-gateway/internal/converter"
)

type fakeClient struct {
	failFC uint8
	reads  int
	closed bool

	coilWrites []bool
	regWrites  [][]uint16
}

func (f *fakeClient) ReadCoils(addr, qty uint16) ([]bool, error) {
	f.reads++
	if f.failFC == 1 {
		return nil, errors.New("fail fc1")
	}
	out := make([]bool, qty)
	out[0] = true
	return out, nil
}

func (f *fakeClient) ReadDiscreteInputs(addr, qty uint16) ([]bool, error) {
	f.reads++
	if f.failFC == 2 {
		return nil, errors.New("fail fc2")
	}
	return make([]bool, qty), nil
}

func (f *fakeClient) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	f.reads++
	if f.failFC == 3 {
		return nil, errors.New("fail fc3")
	}
	out := make([]uint16, qty)
	out[0] = addr
	return out, nil
}

func (f *fakeClient) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	f.reads++
	if f.failFC == 4 {
		return nil, errors.New("fail fc4")
	}
	return make([]uint16, qty), nil
}

func (f *fakeClient) WriteCoil(addr uint16, v bool) error {
	f.coilWrites = append(f.coilWrites, v)
	return nil
}

func (f *fakeClient) WriteRegisters(addr uint16, regs []uint16) error {
	f.regWrites = append(f.regWrites, regs)
	return nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func tagRead(name string, fc uint8, addr uint16) TagRead {
	return TagRead{
		Tag:    name,
		Schema: converter.TagSchema{Type: codec.TypeUint16, FunctionCode: fc, RegisterCount: 1},
		Block:  ReadBlock{FC: fc, Address: addr, Quantity: 1},
	}
}

func testConfig() Config {
	return Config{
		UnitID:   "u1",
		Interval: 1 * time.Second,
		Groups: []GroupReads{
			{Group: converter.GroupTimeseries, Tags: []TagRead{
				tagRead("run", 1, 0),
				tagRead("speed", 3, 7),
			}},
			{Group: converter.GroupAttributes, Tags: []TagRead{
				tagRead("serial", 4, 100),
			}},
		},
		RPC: []TagRead{tagRead("setpoint", 3, 40)},
	}
}

func TestPollOnce_Success(t *testing.T) {
	p, err := New(testConfig(), &fakeClient{}, nil)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	res := p.PollOnce()
	if res.Err != nil {
		t.Fatalf("PollOnce err=%v", res.Err)
	}
	if len(res.Set) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(res.Set))
	}
	if len(res.Set[0].Tags) != 2 || len(res.Set[1].Tags) != 1 {
		t.Fatalf("unexpected group sizes: %+v", res.Set)
	}
	if got := res.Set[0].Tags[1].Response.Registers[0]; got != 7 {
		t.Fatalf("speed register: got=%d want=7", got)
	}
	if !res.Set[0].Tags[0].Response.Bits[0] {
		t.Fatalf("run coil not read")
	}
}

func TestPollOnce_PartialFailureContained(t *testing.T) {
	p, err := New(testConfig(), &fakeClient{failFC: 3}, nil)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	res := p.PollOnce()
	if res.Err != nil {
		t.Fatalf("partial failure must not fail the cycle: %v", res.Err)
	}
	if res.Set[0].Tags[1].Response.Err == nil {
		t.Fatalf("expected speed read error")
	}
	if res.Set[0].Tags[0].Response.Err != nil || res.Set[1].Tags[0].Response.Err != nil {
		t.Fatalf("sibling reads should succeed")
	}
}

func TestPollOnce_TotalFailureRedials(t *testing.T) {
	c := Config{
		UnitID:   "u1",
		Interval: time.Second,
		Groups: []GroupReads{
			{Group: converter.GroupTimeseries, Tags: []TagRead{tagRead("speed", 3, 0)}},
		},
	}

	dead := &fakeClient{failFC: 3}
	healthy := &fakeClient{}
	dials := 0

	p, err := New(c, dead, func() (Client, error) {
		dials++
		return healthy, nil
	})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	res := p.PollOnce()
	if res.Err == nil {
		t.Fatalf("expected cycle error, got nil")
	}
	if !dead.closed {
		t.Fatalf("dead client should be closed")
	}

	res = p.PollOnce()
	if res.Err != nil {
		t.Fatalf("expected recovery, got %v", res.Err)
	}
	if dials != 1 {
		t.Fatalf("expected 1 redial, got %d", dials)
	}
}

func TestPollOnce_DialFailureMarksEveryTag(t *testing.T) {
	p, err := New(testConfig(), nil, func() (Client, error) {
		return nil, errors.New("connection refused")
	})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	res := p.PollOnce()
	if res.Err == nil {
		t.Fatalf("expected error, got nil")
	}
	for _, g := range res.Set {
		for _, td := range g.Tags {
			if td.Response.Err == nil {
				t.Fatalf("tag %s should carry the dial error", td.Tag)
			}
		}
	}
}

func TestReadRPC(t *testing.T) {
	p, err := New(testConfig(), &fakeClient{}, nil)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	set, err := p.ReadRPC("setpoint")
	if err != nil {
		t.Fatalf("ReadRPC err=%v", err)
	}
	if len(set) != 1 || set[0].Group != converter.GroupRPC {
		t.Fatalf("expected one rpc group, got %+v", set)
	}
	if got := set[0].Tags[0].Response.Registers[0]; got != 40 {
		t.Fatalf("setpoint register: got=%d want=40", got)
	}

	if _, err := p.ReadRPC("speed"); !errors.Is(err, ErrUnknownTag) {
		t.Fatalf("expected ErrUnknownTag for non-rpc tag, got %v", err)
	}
}

func TestRun_EmitsUntilCancelled(t *testing.T) {
	c := testConfig()
	c.Interval = 5 * time.Millisecond

	p, err := New(c, &fakeClient{}, nil)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan PollResult)
	done := make(chan struct{})
	go func() {
		p.Run(ctx, out)
		close(done)
	}()

	select {
	case res := <-out:
		if res.UnitID != "u1" {
			t.Fatalf("unexpected unit id %q", res.UnitID)
		}
	case <-time.After(time.Second):
		t.Fatalf("no poll result emitted")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop on cancel")
	}
}

func TestQuantity(t *testing.T) {
	bit := 9
	cases := []struct {
		tag  cfg.TagConfig
		want uint16
	}{
		{cfg.TagConfig{FunctionCode: 3}, 1},
		{cfg.TagConfig{FunctionCode: 3, RegisterCount: 0.5}, 1},
		{cfg.TagConfig{FunctionCode: 4, RegisterCount: 4}, 4},
		{cfg.TagConfig{FunctionCode: 1, RegisterCount: 1, Bit: &bit}, 10},
		{cfg.TagConfig{FunctionCode: 3, RegisterCount: 1, Bit: &bit}, 1},
	}

	for _, c := range cases {
		if got := Quantity(c.tag); got != c.want {
			t.Fatalf("Quantity(%+v): got=%d want=%d", c.tag, got, c.want)
		}
	}
}
