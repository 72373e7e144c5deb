package model

import (
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model/entities"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model/messages"
)

// Alias per esporre tipi comuni ai servizi

type (
	SensorReading         = messages.SensorReading
	Measurement           = messages.Measurement
	MeasurementStatus     = messages.MeasurementStatus
	Violation             = messages.Violation
	AlertEvent            = messages.AlertEvent
	PumpStateChangedEvent = messages.PumpStateChangedEvent
	BoundKind             = messages.BoundKind

	PumpState       = entities.PumpState
	DosingPumpState = entities.DosingPumpState
	AlertThresholds = entities.AlertThresholds
	Band            = entities.Band
	OutOfRangeError = entities.OutOfRangeError
)

// FlowRateForVolume derives a dosing flow rate when the request omits one.
var FlowRateForVolume = entities.FlowRateForVolume

const (
	StatusOK         = messages.StatusOK
	StatusNotWorking = messages.StatusNotWorking

	BoundMin = messages.BoundMin
	BoundMax = messages.BoundMax
)
