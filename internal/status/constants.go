// internal/status/constants.go
package status

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a healthy device.
const HealthOK uint16 = 1

// HealthError represents a device error state.
const HealthError uint16 = 2

// ---- LIMITS ----

// MaxSecondsInError is where SecondsInError saturates. It MUST NOT wrap.
const MaxSecondsInError = 65535

// GenericErrorCode is reported when an error exposes no code of its own.
const GenericErrorCode uint16 = 1
