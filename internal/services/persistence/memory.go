package persistence

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model"
)

const memoryRetention = 10000

// MemoryStore is the in-process Store used when no Influx endpoint is
// configured, and by tests. Retention is a simple cap on entries.
type MemoryStore struct {
	mu       sync.RWMutex
	readings []model.SensorReading
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, reading model.SensorReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, reading)
	if len(s.readings) > memoryRetention {
		s.readings = s.readings[len(s.readings)-memoryRetention:]
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, filter QueryFilter) (Page, error) {
	f := filter.normalized(time.Now())

	s.mu.RLock()
	matched := make([]model.SensorReading, 0, len(s.readings))
	for _, r := range s.readings {
		if f.DeviceID != "" && r.DeviceID != f.DeviceID {
			continue
		}
		if r.CapturedAt.Before(f.From) || r.CapturedAt.After(f.To) {
			continue
		}
		matched = append(matched, r)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CapturedAt.After(matched[j].CapturedAt)
	})

	totalPages := int(math.Ceil(float64(len(matched)) / float64(f.Limit)))
	start := (f.Page - 1) * f.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}

	return Page{
		Items:       matched[start:end],
		TotalPages:  totalPages,
		CurrentPage: f.Page,
	}, nil
}
