// internal/status/snapshot.go
package status

// Snapshot is the current health of one device.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16
}

// Connected reports whether the device should be announced as connected.
func (s Snapshot) Connected() bool { return s.Health == HealthOK }
