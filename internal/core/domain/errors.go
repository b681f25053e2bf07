package domain

import "errors"

var (
	// ErrDeviceNotFound means the requested device or record does not exist.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrInvalidSchedule means autoSchedule is enabled but malformed or
	// partial. The evaluator must reject the device before acting.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrUnsupportedType means simulation or mining was requested for a
	// device type without defined behavior. Expected input, not exceptional.
	ErrUnsupportedType = errors.New("unsupported device type")
	// ErrStoreFailure wraps persistence I/O errors. Writes failing with it
	// are retried on the next scheduled tick.
	ErrStoreFailure = errors.New("store failure")
)
