// Package dedup drops MQTT QoS1 redeliveries. The broker may hand the same
// telemetry sample to a reconnecting consumer more than once; remembering a
// fingerprint of each accepted sample for a short window lets the ingest
// pipeline treat the copies as no-ops.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

const (
	// Redeliveries arrive within seconds of the original publish; a couple
	// of minutes is ample while keeping genuine repeats (identical sensor
	// values on the next publish interval) out of the window.
	defaultWindow = 2 * time.Minute
	defaultLimit  = 4096
)

// Key fingerprints one telemetry sample. The device id is folded in so that
// two devices publishing identical payloads never shadow each other.
func Key(device string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(device))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Deduper remembers sample fingerprints for a bounded window.
type Deduper struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu      sync.Mutex
	expires map[string]time.Time
}

func New(window time.Duration, limit int) *Deduper {
	if window <= 0 {
		window = defaultWindow
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Deduper{
		window:  window,
		limit:   limit,
		now:     time.Now,
		expires: make(map[string]time.Time, limit),
	}
}

// Seen reports whether key was already recorded inside the window, recording
// it otherwise. Once the table outgrows its limit every expired entry is
// swept; live entries are never evicted early, so a burst of distinct samples
// can push the table past the limit until their windows lapse.
func (d *Deduper) Seen(key string) bool {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.expires[key]; ok && now.Before(exp) {
		return true
	}
	d.expires[key] = now.Add(d.window)
	if len(d.expires) > d.limit {
		d.sweep(now)
	}
	return false
}

func (d *Deduper) sweep(now time.Time) {
	for k, exp := range d.expires {
		if !now.Before(exp) {
			delete(d.expires, k)
		}
	}
}
