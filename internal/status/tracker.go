// internal/status/tracker.go
package status

import (
	"errors"

	"github.com/goburrow/modbus"
)

// Tracker owns the health state of one device.
// Not safe for concurrent use; the unit orchestrator is its only owner.
type Tracker struct {
	snap Snapshot
}

// NewTracker starts in HealthUnknown.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Health: HealthUnknown}}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot { return t.snap }

// Observe folds one poll outcome into the state.
// changed reports a Health transition.
func (t *Tracker) Observe(err error) (Snapshot, bool) {
	prev := t.snap.Health

	if err == nil {
		// Recovery / OK
		t.snap.Health = HealthOK
		t.snap.LastErrorCode = 0
		t.snap.SecondsInError = 0
	} else {
		t.snap.Health = HealthError
		t.snap.LastErrorCode = ErrorCode(err)
		// seconds_in_error increments on Tick only
	}

	return t.snap, t.snap.Health != prev
}

// Tick advances SecondsInError while not OK. Call at 1 Hz.
func (t *Tracker) Tick() Snapshot {
	if t.snap.Health != HealthOK && t.snap.SecondsInError < MaxSecondsInError {
		t.snap.SecondsInError++
	}
	return t.snap
}

// ErrorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// Modbus exceptions yield their exception code.
// If the error does not expose a code, returns GenericErrorCode.
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	var me *modbus.ModbusError
	if errors.As(err, &me) {
		return uint16(me.ExceptionCode)
	}

	type coderA interface{ Code() uint16 }
	type coderB interface{ ErrorCode() uint16 }

	var a coderA
	if errors.As(err, &a) {
		return a.Code()
	}
	var b coderB
	if errors.As(err, &b) {
		return b.ErrorCode()
	}

	return GenericErrorCode
}
