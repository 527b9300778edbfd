// internal/poller/builder.go
package poller

import (
	"log/slog"
	"math"
	"time"

	cfg "github.com/googlehim/thingsboard-gateway/internal/config"
	"github.com/googlehim/thingsboard-gateway/internal/converter"
	pmodbus "github.com/googlehim/thingsboard-gateway/internal/poller/modbus"
)

// Build constructs a Poller and wires Modbus client lifecycle.
// Connection is reused while healthy.
// On transport death, Poller discards the client and uses factory on a future tick.
func Build(u cfg.UnitConfig, logger *slog.Logger) (*Poller, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// client factory: ONE attempt per call
	factory := func() (Client, error) {
		c, err := pmodbus.New(pmodbus.Config{
			Endpoint: u.Source.Endpoint,
			UnitID:   u.Source.UnitID,
			Timeout:  time.Duration(u.Source.TimeoutMs) * time.Millisecond,
			BaudRate: u.Source.BaudRate,
			DataBits: u.Source.DataBits,
			Parity:   u.Source.Parity,
			StopBits: u.Source.StopBits,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	// initial client (fail fast at startup)
	client, err := factory()
	if err != nil {
		return nil, err
	}

	pc := Config{
		UnitID:   u.ID,
		Interval: time.Duration(u.Poll.IntervalMs) * time.Millisecond,
	}

	for _, g := range u.Groups() {
		reads := tagReads(g.Tags, logger.With("unit", u.ID, "group", g.Name))
		if g.Name == cfg.GroupRPC {
			pc.RPC = reads
			continue
		}
		pc.Groups = append(pc.Groups, GroupReads{
			Group: converter.Group(g.Name),
			Tags:  reads,
		})
	}

	return New(pc, client, factory)
}

// tagReads derives schema and geometry per tag.
// A schema that fails to parse is kept; the converter reports it per cycle.
func tagReads(tags []cfg.TagConfig, logger *slog.Logger) []TagRead {
	out := make([]TagRead, 0, len(tags))
	for _, t := range tags {
		s, err := converter.SchemaFromConfig(t)
		if err != nil {
			logger.Error("tag schema", "tag", t.Tag, "err", err)
		}
		out = append(out, TagRead{
			Tag:    t.Tag,
			Schema: s,
			Block: ReadBlock{
				FC:       t.FunctionCode,
				Address:  t.Address,
				Quantity: Quantity(t),
			},
		})
	}
	return out
}

// Quantity is the number of coils or registers a tag reads.
func Quantity(t cfg.TagConfig) uint16 {
	q := int(math.Ceil(t.RegisterCount))
	if q < 1 {
		q = 1
	}
	if (t.FunctionCode == 1 || t.FunctionCode == 2) && t.Bit != nil && *t.Bit+1 > q {
		q = *t.Bit + 1
	}
	return uint16(q)
}
