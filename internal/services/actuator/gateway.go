package actuator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/metrics"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/pkg/retry"
)

// StatePublisher receives confirmed actuator transitions for fan-out.
type StatePublisher interface {
	PublishPumpState(evt model.PumpStateChangedEvent)
}

// EventPublisher mirrors confirmed transitions onto the message bus so
// detached services can follow along. Optional.
type EventPublisher interface {
	Publish(topic string, payload any) error
}

// PumpResult is the outcome of a continuous-pump command. DeviceErr is set
// when the wire push exhausted its retries; the desired state is persisted
// either way.
type PumpResult struct {
	State     model.PumpState
	DeviceErr error
}

// DosingResult is the outcome of a dosing command, carrying the values the
// controller was (or would have been) driven with.
type DosingResult struct {
	State       model.DosingPumpState
	DriveLevel  int
	DurationSec int
	DeviceErr   error
}

// Gateway validates actuator commands, records the desired state, pushes the
// command to the device with bounded retries and reconciles the confirmed
// state on acknowledgement. Commands for the same pump are serialized:
// a newer command waits for the in-flight one to finish.
type Gateway struct {
	states StateStore
	device DeviceClient
	hub    StatePublisher
	events EventPublisher

	retryCfg retry.Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	logger *zap.Logger
}

func NewGateway(states StateStore, device DeviceClient, hub StatePublisher, logger *zap.Logger) *Gateway {
	return &Gateway{
		states: states,
		device: device,
		hub:    hub,
		retryCfg: retry.Config{
			MaxAttempts: 2,
			Delay:       500 * time.Millisecond,
			Retryable:   IsRetryable,
		},
		locks:  make(map[string]*sync.Mutex),
		logger: logger,
	}
}

// WithRetry overrides the default push policy (2 attempts, 500ms apart).
func (g *Gateway) WithRetry(maxAttempts int, delay time.Duration) *Gateway {
	g.retryCfg.MaxAttempts = maxAttempts
	g.retryCfg.Delay = delay
	return g
}

// WithEventPublisher mirrors confirmed transitions onto the bus.
func (g *Gateway) WithEventPublisher(pub EventPublisher) *Gateway {
	g.events = pub
	return g
}

// ApplyPumpSettings configures a continuous pump's on/off schedule. The
// schedule is persisted even when the device cannot be reached; the result
// then carries the communication failure.
func (g *Gateway) ApplyPumpSettings(ctx context.Context, deviceID string, onSec, offSec int) (PumpResult, error) {
	state := model.PumpState{
		DeviceID:       deviceID,
		OnDurationSec:  onSec,
		OffDurationSec: offSec,
	}
	if err := state.Validate(); err != nil {
		return PumpResult{}, err
	}

	unlock := g.lock("pump:" + deviceID)
	defer unlock()

	// prior confirmed state is read under the lock: a command that went
	// through while this one waited must not be overwritten with a stale
	// snapshot
	prev, _ := g.states.Pump(deviceID)
	state.ConfirmedActive = prev.ConfirmedActive
	state.LastUpdated = time.Now().UTC()
	g.states.SavePump(state)

	err := g.push(ctx, func() error {
		return g.device.PushPumpSchedule(ctx, deviceID, onSec, offSec)
	})
	if err != nil {
		return PumpResult{State: state, DeviceErr: g.unreachable(deviceID, err)}, nil
	}

	state.ConfirmedActive = true
	g.states.SavePump(state)
	g.announce("continuous", deviceID, true)
	return PumpResult{State: state}, nil
}

// StopPump drives a continuous pump off. ConfirmedActive flips to false only
// on a device acknowledgement; an unreachable device leaves it as-is.
func (g *Gateway) StopPump(ctx context.Context, deviceID string) (PumpResult, error) {
	unlock := g.lock("pump:" + deviceID)
	defer unlock()

	state, ok := g.states.Pump(deviceID)
	if !ok {
		return PumpResult{}, &model.OutOfRangeError{Field: "deviceId",
			Reason: fmt.Sprintf("pump %s has never been configured", deviceID)}
	}

	err := g.push(ctx, func() error {
		return g.device.PushPumpStop(ctx, deviceID)
	})
	if err != nil {
		return PumpResult{State: state, DeviceErr: g.unreachable(deviceID, err)}, nil
	}

	state.ConfirmedActive = false
	state.LastUpdated = time.Now().UTC()
	g.states.SavePump(state)
	g.announce("continuous", deviceID, false)
	return PumpResult{State: state}, nil
}

// GetPump returns the last recorded state for one continuous pump.
func (g *Gateway) GetPump(deviceID string) (model.PumpState, bool) {
	return g.states.Pump(deviceID)
}

// ApplyDosingSettings configures a dosing pump for one delivery. When the
// request omits the flow rate it is derived from the target volume; an
// explicit rate always wins.
func (g *Gateway) ApplyDosingSettings(ctx context.Context, pumpNumber int, targetVolumeMl float64, flowRate *float64) (DosingResult, error) {
	rate := 0.0
	if flowRate != nil {
		rate = *flowRate
	} else {
		rate = model.FlowRateForVolume(targetVolumeMl)
	}
	state := model.DosingPumpState{
		PumpNumber:       pumpNumber,
		FlowRateMlPerMin: rate,
		TargetVolumeMl:   targetVolumeMl,
	}
	if err := state.Validate(); err != nil {
		return DosingResult{}, err
	}

	drive := state.DriveLevel()
	duration := state.DurationSec()

	unlock := g.lock(dosingKey(pumpNumber))
	defer unlock()

	prev, _ := g.states.Dosing(pumpNumber)
	state.ConfirmedActive = prev.ConfirmedActive
	state.LastUpdated = time.Now().UTC()
	g.states.SaveDosing(state)

	err := g.push(ctx, func() error {
		return g.device.PushDosing(ctx, pumpNumber, drive, duration)
	})
	result := DosingResult{State: state, DriveLevel: drive, DurationSec: duration}
	if err != nil {
		result.DeviceErr = g.unreachable(dosingKey(pumpNumber), err)
		return result, nil
	}

	state.ConfirmedActive = duration > 0
	g.states.SaveDosing(state)
	result.State = state
	g.announce("dosing", dosingKey(pumpNumber), state.ConfirmedActive)
	return result, nil
}

// StopDosing halts one dosing pump.
func (g *Gateway) StopDosing(ctx context.Context, pumpNumber int) (DosingResult, error) {
	unlock := g.lock(dosingKey(pumpNumber))
	defer unlock()

	state, ok := g.states.Dosing(pumpNumber)
	if !ok {
		return DosingResult{}, &model.OutOfRangeError{Field: "pumpNumber",
			Reason: fmt.Sprintf("pump %d has never been configured", pumpNumber)}
	}

	err := g.push(ctx, func() error {
		return g.device.PushDosingStop(ctx, pumpNumber)
	})
	if err != nil {
		return DosingResult{State: state, DeviceErr: g.unreachable(dosingKey(pumpNumber), err)}, nil
	}

	state.ConfirmedActive = false
	state.LastUpdated = time.Now().UTC()
	g.states.SaveDosing(state)
	g.announce("dosing", dosingKey(pumpNumber), false)
	return DosingResult{State: state}, nil
}

// GetDosing returns the last recorded state for one dosing pump.
func (g *Gateway) GetDosing(pumpNumber int) (model.DosingPumpState, bool) {
	return g.states.Dosing(pumpNumber)
}

// ListDosing returns every dosing pump that has ever been configured.
func (g *Gateway) ListDosing() []model.DosingPumpState {
	return g.states.AllDosing()
}

func (g *Gateway) push(ctx context.Context, op func() error) error {
	attempt := 0
	return retry.Do(ctx, g.retryCfg, func() error {
		attempt++
		if attempt > 1 {
			metrics.DevicePushRetries.Inc()
		}
		return op()
	})
}

func (g *Gateway) unreachable(key string, err error) error {
	metrics.DevicePushFailures.Inc()
	g.logger.Warn("device push exhausted retries",
		zap.String("key", key),
		zap.Int("attempts", g.retryCfg.MaxAttempts),
		zap.Error(err))
	return &model.DeviceUnreachableError{Key: key, Attempts: g.retryCfg.MaxAttempts, Err: err}
}

func (g *Gateway) announce(kind, key string, active bool) {
	evt := model.PumpStateChangedEvent{
		Kind:      kind,
		Key:       key,
		Active:    active,
		Timestamp: time.Now().UTC(),
	}
	if g.hub != nil {
		g.hub.PublishPumpState(evt)
	}
	if g.events != nil {
		if err := g.events.Publish("event/pumpState/"+key, evt); err != nil {
			g.logger.Warn("publish pump state event failed", zap.Error(err))
		}
	}
}

// lock serializes commands per pump key.
func (g *Gateway) lock(key string) func() {
	g.mu.Lock()
	m, ok := g.locks[key]
	if !ok {
		m = &sync.Mutex{}
		g.locks[key] = m
	}
	g.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func dosingKey(n int) string { return fmt.Sprintf("pump-%d", n) }
