package ingest

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model/messages"
)

// Normalize parses one raw telemetry submission into a canonical reading.
// It tolerates the payload shapes of every firmware revision in the field:
// the canonical per-channel object, the per-board structured objects
// (soilMoisture/dht22/soilTemp/...) and the flat single-sensor fields
// (temperature, humidity, ph, ...). Precedence when the same channel shows
// up more than once: canonical > structured legacy > flat legacy.
//
// It returns a *model.ValidationError only when the payload is not
// decodable as a structured message at all; unreadable channels become
// not-working measurements instead of failing the submission.
func Normalize(raw []byte, fallbackDevice string, now time.Time) (model.SensorReading, error) {
	var payload map[string]any
	if err := json.Unmarshal(sanitizeTokens(raw), &payload); err != nil {
		return model.SensorReading{}, &model.ValidationError{Reason: "not a structured message: " + err.Error()}
	}

	deviceID := firstString(payload, "deviceId", "device_id", "espId", "device", "sensor_id")
	if deviceID == "" {
		deviceID = fallbackDevice
	}
	if deviceID == "" {
		return model.SensorReading{}, &model.ValidationError{Reason: "device id is required"}
	}

	reading := model.SensorReading{
		DeviceID:     deviceID,
		CapturedAt:   resolveTimestamp(payload["timestamp"], now),
		Measurements: make(map[string]model.Measurement),
	}

	collectCanonical(payload, reading.Measurements)
	collectStructuredLegacy(payload, reading.Measurements)
	collectFlatLegacy(payload, reading.Measurements)

	return reading, nil
}

// resolveTimestamp applies the capture-time policy: malformed or missing
// source fields resolve to now, a bare HH:mm:ss combines with today's date.
func resolveTimestamp(v any, now time.Time) time.Time {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return now
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts
			}
		}
		if ts, err := time.Parse("15:04:05", s); err == nil {
			return time.Date(now.Year(), now.Month(), now.Day(),
				ts.Hour(), ts.Minute(), ts.Second(), 0, now.Location())
		}
		return now
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t <= 0 {
			return now
		}
		// epoch seconds, or millis for post-2001 values
		if t > 1e12 {
			return time.UnixMilli(int64(t))
		}
		return time.Unix(int64(t), 0)
	default:
		return now
	}
}

// collectCanonical reads the per-channel "measurements" object.
func collectCanonical(payload map[string]any, out map[string]model.Measurement) {
	obj, ok := payload["measurements"].(map[string]any)
	if !ok {
		return
	}
	for channel, v := range obj {
		setIfAbsent(out, channel, toMeasurement(v))
	}
}

// collectStructuredLegacy reads the per-board object shapes.
func collectStructuredLegacy(payload map[string]any, out map[string]model.Measurement) {
	if probes, ok := payload["soilMoisture"].([]any); ok {
		for i, v := range probes {
			setIfAbsent(out, messages.SoilMoistureChannel(i+1), toMeasurement(v))
		}
	}
	if dht, ok := payload["dht22"].(map[string]any); ok {
		setIfAbsent(out, messages.ChannelAirTemperature, toMeasurement(dht["temp"]))
		setIfAbsent(out, messages.ChannelAirHumidity, toMeasurement(dht["hum"]))
	}
	for _, m := range []struct{ key, channel string }{
		{"soilTemp", messages.ChannelWaterTemperature},
		{"waterTemp", messages.ChannelWaterTemperature},
		{"airQuality", messages.ChannelAirQuality},
		{"lightIntensity", messages.ChannelLight},
	} {
		if v, ok := payload[m.key]; ok {
			setIfAbsent(out, m.channel, toMeasurement(v))
		}
	}
}

// collectFlatLegacy reads the flat single-sensor field names.
func collectFlatLegacy(payload map[string]any, out map[string]model.Measurement) {
	flat := map[string]string{
		"temperature":   messages.ChannelAirTemperature,
		"temp":          messages.ChannelAirTemperature,
		"humidity":      messages.ChannelAirHumidity,
		"hum":           messages.ChannelAirHumidity,
		"air_quality":   messages.ChannelAirQuality,
		"light":         messages.ChannelLight,
		"uv":            messages.ChannelUVIndex,
		"uv_index":      messages.ChannelUVIndex,
		"uvIndex":       messages.ChannelUVIndex,
		"ec":            messages.ChannelEC,
		"ph":            messages.ChannelPH,
		"water_temp":    messages.ChannelWaterTemperature,
		"soil_moisture": messages.SoilMoistureChannel(1),
	}
	for key, channel := range flat {
		if v, ok := payload[key]; ok {
			setIfAbsent(out, channel, toMeasurement(v))
		}
	}
}

// toMeasurement converts one raw channel value. Objects honor the embedded
// status field; anything unparseable becomes not-working, never zero.
func toMeasurement(v any) model.Measurement {
	if obj, ok := v.(map[string]any); ok {
		if status, ok := obj["status"].(string); ok && !strings.EqualFold(strings.TrimSpace(status), "ok") {
			return messages.NotWorking()
		}
		v = obj["value"]
	}
	if f, ok := parseNumeric(v); ok {
		return messages.OK(f)
	}
	return messages.NotWorking()
}

// parseNumeric accepts JSON numbers and numeric strings (including the
// soil-moisture "NN%" convention). NaN, infinities and the malformed
// tokens left behind by flaky firmware all come back as not parseable.
func parseNumeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%"))
		if s == "" {
			return 0, false
		}
		switch strings.ToLower(s) {
		case "nan", "undefined", "null", "not working", "infinity", "-infinity":
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func setIfAbsent(out map[string]model.Measurement, channel string, m model.Measurement) {
	if _, exists := out[channel]; !exists {
		out[channel] = m
	}
}

func firstString(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := payload[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// sanitizeTokens rewrites the bare tokens NaN, nan, undefined, Infinity and
// -Infinity to null before structural parsing, so a flaky channel cannot
// fail the whole payload. String literals are left untouched.
func sanitizeTokens(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			out = append(out, c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		if isIdentByte(c) {
			j := i
			for j < len(raw) && isIdentByte(raw[j]) {
				j++
			}
			word := string(raw[i:j])
			switch word {
			case "NaN", "nan", "undefined", "Infinity":
				// a leading minus sign would leave "-null" behind
				if n := len(out); word == "Infinity" && n > 0 && out[n-1] == '-' {
					out = out[:n-1]
				}
				out = append(out, []byte("null")...)
			default:
				out = append(out, raw[i:j]...)
			}
			i = j - 1
			continue
		}
		out = append(out, c)
	}
	return out
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
