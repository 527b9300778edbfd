// internal/poller/poller.go
package poller

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/googlehim/thingsboard-gateway/internal/converter"
)

// Client abstracts Modbus operations needed by the poller.
// The poller depends on geometry only.
type Client interface {
	ReadCoils(addr, qty uint16) ([]bool, error)              // FC 1
	ReadDiscreteInputs(addr, qty uint16) ([]bool, error)     // FC 2
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) // FC 3
	ReadInputRegisters(addr, qty uint16) ([]uint16, error)   // FC 4

	WriteCoil(addr uint16, v bool) error             // FC 5
	WriteRegisters(addr uint16, regs []uint16) error // FC 16
}

// Factory dials a fresh client. ONE attempt per call.
type Factory func() (Client, error)

// Config is the minimal runtime config the poller needs.
type Config struct {
	UnitID   string
	Interval time.Duration

	// Polled every tick, in order.
	Groups []GroupReads

	// Read on demand only.
	RPC []TagRead
}

var (
	ErrNoClient   = errors.New("poller: no client")
	ErrUnknownTag = errors.New("poller: unknown tag")
)

// Poller is a clock-driven reader.
// Client access is serialized; RPC reads share the connection with ticks.
type Poller struct {
	cfg     Config
	factory Factory

	mu     sync.Mutex
	client Client
}

// New creates a poller with immutable config.
// client may be nil when factory is set; it is dialed on first use.
func New(cfg Config, client Client, factory Factory) (*Poller, error) {
	if cfg.UnitID == "" {
		return nil, errors.New("poller: unit id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if client == nil && factory == nil {
		return nil, errors.New("poller: client or factory required")
	}
	return &Poller{cfg: cfg, client: client, factory: factory}, nil
}

// PollOnce performs exactly one poll cycle.
// A failed tag is recorded in its own response; siblings are still read.
func (p *Poller) PollOnce() PollResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := PollResult{
		UnitID: p.cfg.UnitID,
		At:     time.Now(),
	}

	cli, dialErr := p.clientLocked()

	total, failed := 0, 0
	for _, g := range p.cfg.Groups {
		gd := converter.GroupData{Group: g.Group}
		for _, tr := range g.Tags {
			var resp converter.Response
			if dialErr != nil {
				resp.Err = dialErr
			} else {
				resp = read(cli, tr.Block)
			}

			total++
			if resp.Err != nil {
				failed++
			}
			gd.Tags = append(gd.Tags, converter.TagData{
				Tag:      tr.Tag,
				Schema:   tr.Schema,
				Response: resp,
			})
		}
		res.Set = append(res.Set, gd)
	}

	if total > 0 && failed == total {
		res.Err = dialErr
		if res.Err == nil {
			res.Err = fmt.Errorf("poller: all %d reads failed", total)
		}
		p.discardLocked()
	}

	return res
}

// ReadRPC reads one rpc tag on demand and returns it as an rpc group.
func (p *Poller) ReadRPC(tag string) (converter.ResponseSet, error) {
	tr, ok := p.Tag(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var resp converter.Response
	cli, err := p.clientLocked()
	if err != nil {
		resp.Err = err
	} else {
		resp = read(cli, tr.Block)
	}

	return converter.ResponseSet{{
		Group: converter.GroupRPC,
		Tags:  []converter.TagData{{Tag: tr.Tag, Schema: tr.Schema, Response: resp}},
	}}, nil
}

// Tag looks up a configured rpc tag by name.
func (p *Poller) Tag(name string) (TagRead, bool) {
	for _, tr := range p.cfg.RPC {
		if tr.Tag == name {
			return tr, true
		}
	}
	return TagRead{}, false
}

// Do runs fn against the live client under the poller lock.
func (p *Poller) Do(fn func(Client) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cli, err := p.clientLocked()
	if err != nil {
		return err
	}
	return fn(cli)
}

// Close releases the current client, if any.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.client.(io.Closer)
	p.client = nil
	if ok {
		return c.Close()
	}
	return nil
}

func (p *Poller) clientLocked() (Client, error) {
	if p.client != nil {
		return p.client, nil
	}
	if p.factory == nil {
		return nil, ErrNoClient
	}
	c, err := p.factory()
	if err != nil {
		return nil, fmt.Errorf("poller: dial: %w", err)
	}
	p.client = c
	return c, nil
}

// discardLocked drops a client presumed dead; factory redials on a later tick.
func (p *Poller) discardLocked() {
	if p.factory == nil {
		return
	}
	if c, ok := p.client.(io.Closer); ok {
		_ = c.Close()
	}
	p.client = nil
}

func read(cli Client, rb ReadBlock) converter.Response {
	switch rb.FC {
	case 1:
		bits, err := cli.ReadCoils(rb.Address, rb.Quantity)
		return converter.Response{Bits: bits, Err: err}

	case 2:
		bits, err := cli.ReadDiscreteInputs(rb.Address, rb.Quantity)
		return converter.Response{Bits: bits, Err: err}

	case 3:
		regs, err := cli.ReadHoldingRegisters(rb.Address, rb.Quantity)
		return converter.Response{Registers: regs, Err: err}

	case 4:
		regs, err := cli.ReadInputRegisters(rb.Address, rb.Quantity)
		return converter.Response{Registers: regs, Err: err}
	}
	return converter.Response{Err: fmt.Errorf("poller: unsupported function code %d", rb.FC)}
}
