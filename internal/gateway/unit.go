// internal/gateway/unit.go
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	cfg "github.com/googlehim/thingsboard-gateway/internal/config"
	"github.com/googlehim/thingsboard-gateway/internal/converter"
	"github.com/googlehim/thingsboard-gateway/internal/poller"
	"github.com/googlehim/thingsboard-gateway/internal/publisher"
	"github.com/googlehim/thingsboard-gateway/internal/status"
)

// Unit is the runtime pipeline of one configured device:
// poll -> convert -> publish -> status.
type Unit struct {
	id     string
	poller *poller.Poller
	conv   *converter.Converter
	pub    publisher.Publisher
	status *status.Tracker
	log    *slog.Logger
}

// New assembles a unit from already built parts.
func New(id string, p *poller.Poller, conv *converter.Converter, pub publisher.Publisher, logger *slog.Logger) (*Unit, error) {
	if p == nil || conv == nil || pub == nil {
		return nil, errors.New("gateway: poller, converter and publisher required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Unit{
		id:     id,
		poller: p,
		conv:   conv,
		pub:    pub,
		status: status.NewTracker(),
		log:    logger.With("unit", id, "device", conv.Identity().Name),
	}, nil
}

// Build wires one unit config onto a shared publisher.
func Build(u cfg.UnitConfig, pub publisher.Publisher, logger *slog.Logger) (*Unit, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p, err := poller.Build(u, logger)
	if err != nil {
		return nil, err
	}

	id := converter.ResolveIdentity(u.Device.Name, u.Device.Type, u.Source.UnitID)
	return New(u.ID, p, converter.New(id, logger), pub, logger)
}

// Device is the ThingsBoard name of the unit's device.
func (u *Unit) Device() string { return u.conv.Identity().Name }

// Status returns the current health snapshot.
func (u *Unit) Status() status.Snapshot { return u.status.Snapshot() }

// Run drives the unit until ctx is cancelled.
// It owns the status tracker and the 1 Hz seconds ticker.
func (u *Unit) Run(ctx context.Context) {
	out := make(chan poller.PollResult)
	go u.poller.Run(ctx, out)

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			if u.status.Snapshot().Connected() {
				if err := u.pub.Disconnect(u.Device()); err != nil {
					u.log.Warn("disconnect on shutdown failed", "err", err)
				}
			}
			return

		case res := <-out:
			u.handle(res)

		case <-secTicker.C:
			if snap := u.status.Tick(); snap.Health == status.HealthError {
				u.log.Debug("device in error", "seconds", snap.SecondsInError, "code", snap.LastErrorCode)
			}
		}
	}
}

// handle processes one poll cycle.
// A cycle where every read failed publishes nothing; status carries the failure.
func (u *Unit) handle(res poller.PollResult) {
	if res.Err == nil {
		out := u.conv.Convert(res.Set)
		if err := u.pub.PublishResult(out.Result, res.At); err != nil {
			u.log.Error("publish failed", "err", err)
		}
	}

	snap, changed := u.status.Observe(res.Err)
	if !changed {
		return
	}

	if snap.Connected() {
		u.log.Info("device connected")
		if err := u.pub.Connect(u.Device(), u.conv.Identity().Type); err != nil {
			u.log.Error("connect notify failed", "err", err)
		}
		return
	}

	u.log.Warn("device unreachable", "code", snap.LastErrorCode, "err", res.Err)
	if err := u.pub.Disconnect(u.Device()); err != nil {
		u.log.Error("disconnect notify failed", "err", err)
	}
}

// Close releases the Modbus connection.
func (u *Unit) Close() error {
	return u.poller.Close()
}
