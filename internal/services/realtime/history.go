package realtime

import (
	"sort"
	"sync"
	"time"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model"
)

// DefaultHistoryCapacity bounds the per-device replay buffer.
const DefaultHistoryCapacity = 150

// History is the per-device recent-readings cache backing catch-up replay.
// Best effort only: entries evicted on overflow or lost on restart are an
// accepted gap, durable history lives in the telemetry store.
type History struct {
	mu       sync.RWMutex
	capacity int
	byDevice map[string][]model.SensorReading // newest first
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		capacity: capacity,
		byDevice: make(map[string][]model.SensorReading),
	}
}

// Push records a reading, evicting the oldest entry on overflow.
func (h *History) Push(reading model.SensorReading) {
	if reading.DeviceID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := h.byDevice[reading.DeviceID]
	entries = append([]model.SensorReading{reading}, entries...)
	if len(entries) > h.capacity {
		entries = entries[:h.capacity]
	}
	h.byDevice[reading.DeviceID] = entries
}

// ReplaySince returns the cached readings of one device strictly newer than
// since, oldest first. Safe to call repeatedly: same input against an
// unchanged cache returns the same set.
func (h *History) ReplaySince(deviceID string, since time.Time) []model.SensorReading {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entries := h.byDevice[deviceID]
	out := make([]model.SensorReading, 0, len(entries))
	// entries are newest first; walk backwards for ascending order
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].CapturedAt.After(since) {
			out = append(out, entries[i])
		}
	}
	return out
}

// ReplayAllSince merges the replay of every cached device, ascending by
// capture time.
func (h *History) ReplayAllSince(since time.Time) []model.SensorReading {
	h.mu.RLock()
	devices := make([]string, 0, len(h.byDevice))
	for d := range h.byDevice {
		devices = append(devices, d)
	}
	h.mu.RUnlock()

	var out []model.SensorReading
	for _, d := range devices {
		out = append(out, h.ReplaySince(d, since)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CapturedAt.Before(out[j].CapturedAt)
	})
	return out
}
