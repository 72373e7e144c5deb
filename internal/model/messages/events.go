package messages

import "time"

// BoundKind says which side of a threshold band was crossed.
type BoundKind string

const (
	BoundMin BoundKind = "min"
	BoundMax BoundKind = "max"
)

// Violation is one threshold breach on one channel of one reading.
type Violation struct {
	Channel       string    `json:"channel"`
	Value         float64   `json:"value"`
	BoundExceeded BoundKind `json:"boundExceeded"`
}

// AlertEvent is pushed to the owning user's room when a reading breaches
// that user's thresholds.
type AlertEvent struct {
	DeviceID   string      `json:"deviceId"`
	Message    string      `json:"message"`
	Violations []Violation `json:"violations"`
	Timestamp  time.Time   `json:"timestamp"`
}

// PumpStateChangedEvent is published after every confirmed actuator
// transition so external listeners can track device state.
type PumpStateChangedEvent struct {
	Kind      string    `json:"kind"` // "continuous" | "dosing"
	Key       string    `json:"key"`  // deviceId or "pump-N"
	Active    bool      `json:"active"`
	Timestamp time.Time `json:"timestamp"`
}
