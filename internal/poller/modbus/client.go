// internal/poller/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goburrow/modbus"
)

const rtuScheme = "rtu://"

// Client implements poller.Client over goburrow/modbus, TCP or RTU.
// This adapter is geometry-only: it issues requests and unpacks raw responses.
type Client struct {
	handler handler
	client  modbus.Client
}

type handler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

// Config is minimal transport config.
type Config struct {
	Endpoint string // host:port or rtu:///dev/ttyX
	UnitID   uint8
	Timeout  time.Duration

	// serial only
	BaudRate int
	DataBits int
	Parity   string
	StopBits int
}

// New creates a connected Modbus client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbus client: endpoint required")
	}

	var h handler
	if strings.HasPrefix(cfg.Endpoint, rtuScheme) {
		rh := modbus.NewRTUClientHandler(strings.TrimPrefix(cfg.Endpoint, rtuScheme))
		rh.SlaveId = cfg.UnitID
		rh.Timeout = cfg.Timeout
		if cfg.BaudRate > 0 {
			rh.BaudRate = cfg.BaudRate
		}
		if cfg.DataBits > 0 {
			rh.DataBits = cfg.DataBits
		}
		if cfg.StopBits > 0 {
			rh.StopBits = cfg.StopBits
		}
		if cfg.Parity != "" {
			rh.Parity = strings.ToUpper(cfg.Parity[:1])
		}
		h = rh
	} else {
		th := modbus.NewTCPClientHandler(cfg.Endpoint)
		th.SlaveId = cfg.UnitID
		th.Timeout = cfg.Timeout
		h = th
	}

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbus client: connect %s: %w", cfg.Endpoint, err)
	}

	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.handler == nil {
		return nil
	}
	return c.handler.Close()
}

// ---- poller.Client interface ----

func (c *Client) ReadCoils(addr, qty uint16) ([]bool, error) {
	data, err := c.client.ReadCoils(addr, qty)
	if err != nil {
		return nil, err
	}
	return unpackBits(data, int(qty)), nil
}

func (c *Client) ReadDiscreteInputs(addr, qty uint16) ([]bool, error) {
	data, err := c.client.ReadDiscreteInputs(addr, qty)
	if err != nil {
		return nil, err
	}
	return unpackBits(data, int(qty)), nil
}

func (c *Client) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	data, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(data)
}

func (c *Client) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	data, err := c.client.ReadInputRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(data)
}

func (c *Client) WriteCoil(addr uint16, v bool) error {
	var value uint16
	if v {
		value = 0xFF00
	}
	_, err := c.client.WriteSingleCoil(addr, value)
	return err
}

func (c *Client) WriteRegisters(addr uint16, regs []uint16) error {
	if len(regs) == 0 {
		return nil
	}
	_, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), packRegisters(regs))
	return err
}

// ---- helpers (pure geometry) ----

func unpackBits(data []byte, count int) []bool {
	out := make([]bool, count)
	for i := 0; i < count; i++ {
		byteIdx := i / 8
		bitIdx := i % 8
		if byteIdx >= len(data) {
			out[i] = false
			continue
		}
		out[i] = (data[byteIdx]&(1<<bitIdx) != 0)
	}
	return out
}

// unpackRegisters decodes big-endian register words as they arrive on the wire.
func unpackRegisters(data []byte) ([]uint16, error) {
	if len(data)%2 != 0 {
		return nil, errors.New("modbus: read-registers byte count not even")
	}
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out, nil
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
