package entities

import (
	"fmt"
	"math"
	"time"
)

// Hardware-imposed bounds for the continuous (water) pump schedule.
const (
	MinOnDurationSec  = 1
	MaxOnDurationSec  = 3600 // 1 hour
	MinOffDurationSec = 1
	MaxOffDurationSec = 7200 // 2 hours
)

// PumpState tracks a continuous pump: desired on/off schedule plus the last
// device-acknowledged activity. Desired and confirmed may diverge when the
// device is unreachable.
type PumpState struct {
	DeviceID        string    `json:"deviceId"`
	OnDurationSec   int       `json:"onDurationSec"`
	OffDurationSec  int       `json:"offDurationSec"`
	ConfirmedActive bool      `json:"confirmedActive"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// pumpDevices are the water pump controllers installed in the field.
var pumpDevices = map[string]bool{
	"esp1": true, "esp2": true, "esp3": true, "esp4": true, "esp5": true,
}

// Validate enforces the hardware bounds before any persistence or wire call.
func (p PumpState) Validate() error {
	if !pumpDevices[p.DeviceID] {
		return &OutOfRangeError{Field: "deviceId", Reason: "must be one of esp1-esp5"}
	}
	if p.OnDurationSec < MinOnDurationSec || p.OnDurationSec > MaxOnDurationSec {
		return &OutOfRangeError{Field: "onDurationSec",
			Reason: fmt.Sprintf("must be between %d-%d seconds", MinOnDurationSec, MaxOnDurationSec)}
	}
	if p.OffDurationSec < MinOffDurationSec || p.OffDurationSec > MaxOffDurationSec {
		return &OutOfRangeError{Field: "offDurationSec",
			Reason: fmt.Sprintf("must be between %d-%d seconds", MinOffDurationSec, MaxOffDurationSec)}
	}
	return nil
}

// Dosing pump bounds. Flow maps linearly onto the driver's actuation range.
const (
	MinPumpNumber = 1
	MaxPumpNumber = 4

	MinFlowRateMlPerMin = 1.0
	MaxFlowRateMlPerMin = 100.0

	MinTargetVolumeMl = 0.0
	MaxTargetVolumeMl = 1000.0 // 1 liter

	MinDriveLevel = 10
	MaxDriveLevel = 255
)

// DosingPumpState tracks one peristaltic dosing pump (1..4).
type DosingPumpState struct {
	PumpNumber       int       `json:"pumpNumber"`
	FlowRateMlPerMin float64   `json:"flowRate"`
	TargetVolumeMl   float64   `json:"targetVolume"`
	ConfirmedActive  bool      `json:"confirmedActive"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// Validate enforces the hardware bounds.
func (d DosingPumpState) Validate() error {
	if d.PumpNumber < MinPumpNumber || d.PumpNumber > MaxPumpNumber {
		return &OutOfRangeError{Field: "pumpNumber",
			Reason: fmt.Sprintf("must be between %d-%d", MinPumpNumber, MaxPumpNumber)}
	}
	if d.FlowRateMlPerMin < MinFlowRateMlPerMin || d.FlowRateMlPerMin > MaxFlowRateMlPerMin {
		return &OutOfRangeError{Field: "flowRate",
			Reason: fmt.Sprintf("must be between %.0f-%.0f ml/min", MinFlowRateMlPerMin, MaxFlowRateMlPerMin)}
	}
	if d.TargetVolumeMl < MinTargetVolumeMl || d.TargetVolumeMl > MaxTargetVolumeMl {
		return &OutOfRangeError{Field: "targetVolume",
			Reason: fmt.Sprintf("must be between %.0f-%.0f ml", MinTargetVolumeMl, MaxTargetVolumeMl)}
	}
	return nil
}

// DurationSec computes how long the pump must run to deliver the target
// volume: round(volume / rate * 60). Zero when either term is zero.
func (d DosingPumpState) DurationSec() int {
	if d.TargetVolumeMl <= 0 || d.FlowRateMlPerMin <= 0 {
		return 0
	}
	return int(math.Round(d.TargetVolumeMl / d.FlowRateMlPerMin * 60))
}

// DriveLevel maps the flow rate linearly onto the driver range and clamps
// to the bounds.
func (d DosingPumpState) DriveLevel() int {
	lvl := math.Round((d.FlowRateMlPerMin-MinFlowRateMlPerMin)*
		(MaxDriveLevel-MinDriveLevel)/(MaxFlowRateMlPerMin-MinFlowRateMlPerMin)) + MinDriveLevel
	if lvl < MinDriveLevel {
		return MinDriveLevel
	}
	if lvl > MaxDriveLevel {
		return MaxDriveLevel
	}
	return int(lvl)
}

// FlowRateForVolume derives a flow rate from the target volume with a
// monotonic step function: small doses run slow, large doses run fast.
// An operator-specified flow rate always overrides this derivation; the
// derivation only fills the gap when the request omits the rate.
func FlowRateForVolume(volumeMl float64) float64 {
	switch {
	case volumeMl <= 50:
		return 10
	case volumeMl <= 200:
		return 25
	case volumeMl <= 500:
		return 50
	default:
		return MaxFlowRateMlPerMin
	}
}
