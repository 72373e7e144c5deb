package model

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable marks a retryable infrastructure fault on the durable
// store; callers surface it as 5xx, never as a validation failure.
var ErrStoreUnavailable = errors.New("telemetry store unavailable")

// ValidationError rejects a payload that is not parseable as a structured
// message at all. Partial or missing channels are NOT validation errors.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + e.Reason
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DeviceUnreachableError marks an actuator wire push that failed after
// exhausting retries. The desired configuration is already persisted; the
// computed command values travel with the error so the operator can see
// what would have been sent.
type DeviceUnreachableError struct {
	Key      string // deviceId or pump key
	Attempts int
	Err      error
}

func (e *DeviceUnreachableError) Error() string {
	return fmt.Sprintf("device %s unreachable after %d attempts: %v", e.Key, e.Attempts, e.Err)
}

func (e *DeviceUnreachableError) Unwrap() error { return e.Err }

// IsDeviceUnreachable reports whether err is (or wraps) a device
// communication failure.
func IsDeviceUnreachable(err error) bool {
	var de *DeviceUnreachableError
	return errors.As(err, &de)
}

// IsOutOfRange reports whether err is a configuration range rejection.
func IsOutOfRange(err error) bool {
	var oe *OutOfRangeError
	return errors.As(err, &oe)
}
