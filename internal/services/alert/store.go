package alert

import (
	"sync"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model"
)

// Store keeps one active threshold configuration per user, last write wins.
type Store struct {
	mu     sync.RWMutex
	byUser map[string]model.AlertThresholds
}

func NewStore() *Store {
	return &Store{byUser: make(map[string]model.AlertThresholds)}
}

// Put replaces the user's configuration.
func (s *Store) Put(userID string, thresholds model.AlertThresholds) {
	cp := make(model.AlertThresholds, len(thresholds))
	for ch, band := range thresholds {
		cp[ch] = band
	}
	s.mu.Lock()
	s.byUser[userID] = cp
	s.mu.Unlock()
}

// Get returns the user's configuration, nil when none exists.
func (s *Store) Get(userID string) model.AlertThresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byUser[userID]
	if !ok {
		return nil
	}
	cp := make(model.AlertThresholds, len(t))
	for ch, band := range t {
		cp[ch] = band
	}
	return cp
}

// All snapshots every user's configuration for alert evaluation.
func (s *Store) All() map[string]model.AlertThresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.AlertThresholds, len(s.byUser))
	for user, t := range s.byUser {
		cp := make(model.AlertThresholds, len(t))
		for ch, band := range t {
			cp[ch] = band
		}
		out[user] = cp
	}
	return out
}
