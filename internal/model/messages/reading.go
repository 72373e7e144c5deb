package messages

import (
	"fmt"
	"time"
)

// MeasurementStatus marks whether a channel produced a usable value.
type MeasurementStatus string

const (
	StatusOK         MeasurementStatus = "ok"
	StatusNotWorking MeasurementStatus = "not-working"
)

// Measurement is one sampled value on one channel. Value is nil when the
// channel is not working; zero is a valid reading and is kept distinct.
type Measurement struct {
	Value  *float64          `json:"value,omitempty"`
	Status MeasurementStatus `json:"status"`
}

// OK builds a working measurement.
func OK(v float64) Measurement {
	return Measurement{Value: &v, Status: StatusOK}
}

// NotWorking builds an absent measurement.
func NotWorking() Measurement {
	return Measurement{Status: StatusNotWorking}
}

// Reportable reports whether the measurement carries a usable numeric value.
func (m Measurement) Reportable() bool {
	return m.Status == StatusOK && m.Value != nil
}

// Canonical channel names.
const (
	ChannelAirTemperature   = "air-temperature"
	ChannelAirHumidity      = "air-humidity"
	ChannelWaterTemperature = "water-temperature"
	ChannelAirQuality       = "air-quality"
	ChannelLight            = "light"
	ChannelUVIndex          = "uv-index"
	ChannelEC               = "ec"
	ChannelPH               = "ph"
)

// SoilMoistureSlots is how many soil moisture probes a board can report.
const SoilMoistureSlots = 3

// SoilMoistureChannel returns the canonical name for probe n (1-based).
func SoilMoistureChannel(n int) string {
	return fmt.Sprintf("soil-moisture-%d", n)
}

// KnownChannels lists every canonical channel in export column order.
func KnownChannels() []string {
	out := make([]string, 0, SoilMoistureSlots+8)
	for i := 1; i <= SoilMoistureSlots; i++ {
		out = append(out, SoilMoistureChannel(i))
	}
	return append(out,
		ChannelAirTemperature,
		ChannelAirHumidity,
		ChannelWaterTemperature,
		ChannelAirQuality,
		ChannelLight,
		ChannelUVIndex,
		ChannelEC,
		ChannelPH,
	)
}

// SensorReading is one normalized telemetry sample from one device.
// Immutable once stored; normalization happens exactly once, before persist.
type SensorReading struct {
	DeviceID     string                 `json:"deviceId"`
	CapturedAt   time.Time              `json:"capturedAt"`
	Measurements map[string]Measurement `json:"measurements"`
}

// Measurement returns the measurement for a channel, NotWorking if missing.
func (r SensorReading) Measurement(channel string) Measurement {
	if m, ok := r.Measurements[channel]; ok {
		return m
	}
	return NotWorking()
}
