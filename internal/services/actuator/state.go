package actuator

import (
	"sort"
	"sync"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model"
)

// StateStore holds the desired/confirmed actuator state per device and per
// dosing pump. Injected into the gateway so nothing process-wide is shared.
type StateStore interface {
	Pump(deviceID string) (model.PumpState, bool)
	SavePump(state model.PumpState)
	Dosing(pumpNumber int) (model.DosingPumpState, bool)
	SaveDosing(state model.DosingPumpState)
	AllDosing() []model.DosingPumpState
}

// MemoryStateStore is the in-process StateStore. Pump states are created on
// first configuration, updated on every command, never deleted.
type MemoryStateStore struct {
	mu     sync.RWMutex
	pumps  map[string]model.PumpState
	dosing map[int]model.DosingPumpState
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		pumps:  make(map[string]model.PumpState),
		dosing: make(map[int]model.DosingPumpState),
	}
}

func (s *MemoryStateStore) Pump(deviceID string) (model.PumpState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.pumps[deviceID]
	return st, ok
}

func (s *MemoryStateStore) SavePump(state model.PumpState) {
	s.mu.Lock()
	s.pumps[state.DeviceID] = state
	s.mu.Unlock()
}

func (s *MemoryStateStore) Dosing(pumpNumber int) (model.DosingPumpState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.dosing[pumpNumber]
	return st, ok
}

func (s *MemoryStateStore) SaveDosing(state model.DosingPumpState) {
	s.mu.Lock()
	s.dosing[state.PumpNumber] = state
	s.mu.Unlock()
}

func (s *MemoryStateStore) AllDosing() []model.DosingPumpState {
	s.mu.RLock()
	out := make([]model.DosingPumpState, 0, len(s.dosing))
	for _, st := range s.dosing {
		out = append(out, st)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PumpNumber < out[j].PumpNumber })
	return out
}
