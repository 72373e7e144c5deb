// Package alert evaluates readings against per-user threshold bands and
// routes violations to the owning user's observers.
package alert

import (
	"sort"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model"
)

// Evaluate compares every thresholded channel that is reportable in the
// reading against its inclusive [min, max] band. A value outside the band
// yields exactly one violation; channels missing from either side are
// skipped. Pure and stateless: the caller loads the right user's thresholds
// and routes the result.
func Evaluate(reading model.SensorReading, thresholds model.AlertThresholds) []model.Violation {
	if len(thresholds) == 0 {
		return nil
	}

	channels := make([]string, 0, len(thresholds))
	for ch := range thresholds {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	var out []model.Violation
	for _, channel := range channels {
		m := reading.Measurement(channel)
		if !m.Reportable() {
			continue
		}
		band := thresholds[channel]
		switch {
		case *m.Value < band.Min:
			out = append(out, model.Violation{Channel: channel, Value: *m.Value, BoundExceeded: model.BoundMin})
		case *m.Value > band.Max:
			out = append(out, model.Violation{Channel: channel, Value: *m.Value, BoundExceeded: model.BoundMax})
		}
	}
	return out
}
