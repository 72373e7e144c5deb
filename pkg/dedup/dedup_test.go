package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeenDropsRepeatInsideWindow(t *testing.T) {
	d := New(time.Minute, 0)
	key := Key("esp1", []byte(`{"temperature":21.5}`))

	assert.False(t, d.Seen(key))
	assert.True(t, d.Seen(key))
}

func TestKeyIsScopedToDevice(t *testing.T) {
	d := New(time.Minute, 0)
	payload := []byte(`{"temperature":21.5}`)

	assert.False(t, d.Seen(Key("esp1", payload)))
	assert.False(t, d.Seen(Key("esp2", payload)))
}

func TestSeenForgetsAfterWindow(t *testing.T) {
	d := New(time.Minute, 0)
	base := time.Now()
	d.now = func() time.Time { return base }
	key := Key("esp1", []byte(`{"humidity":60}`))

	assert.False(t, d.Seen(key))
	d.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.False(t, d.Seen(key))
}

func TestSweepEvictsExpiredFingerprints(t *testing.T) {
	d := New(time.Minute, 4)
	base := time.Now()
	d.now = func() time.Time { return base }
	for i := 0; i < 4; i++ {
		d.Seen(Key("esp1", []byte(fmt.Sprintf(`{"n":%d}`, i))))
	}

	// a fifth fingerprint after the window lapses sweeps the stale four
	d.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.False(t, d.Seen(Key("esp1", []byte(`{"n":4}`))))
	assert.Len(t, d.expires, 1)
}
