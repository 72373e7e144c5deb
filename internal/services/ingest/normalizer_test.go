package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model/messages"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func TestNormalizeMalformedTokensBecomeNotWorking(t *testing.T) {
	cases := map[string]string{
		"bare NaN":       `{"deviceId":"esp1","temperature":NaN,"humidity":40}`,
		"lowercase nan":  `{"deviceId":"esp1","temperature":nan,"humidity":40}`,
		"undefined":      `{"deviceId":"esp1","temperature":undefined,"humidity":40}`,
		"Infinity":       `{"deviceId":"esp1","temperature":Infinity,"humidity":40}`,
		"-Infinity":      `{"deviceId":"esp1","temperature":-Infinity,"humidity":40}`,
		"string nan":     `{"deviceId":"esp1","temperature":"nan","humidity":40}`,
		"null value":     `{"deviceId":"esp1","temperature":null,"humidity":40}`,
		"garbage string": `{"deviceId":"esp1","temperature":"forty","humidity":40}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			r, err := Normalize([]byte(payload), "", testNow)
			require.NoError(t, err)
			assert.Equal(t, model.StatusNotWorking, r.Measurement(messages.ChannelAirTemperature).Status)
			hum := r.Measurement(messages.ChannelAirHumidity)
			require.True(t, hum.Reportable())
			assert.Equal(t, 40.0, *hum.Value)
		})
	}
}

func TestNormalizeZeroIsDistinctFromNotWorking(t *testing.T) {
	r, err := Normalize([]byte(`{"deviceId":"esp1","temperature":0,"ec":0.0}`), "", testNow)
	require.NoError(t, err)
	for _, ch := range []string{messages.ChannelAirTemperature, messages.ChannelEC} {
		m := r.Measurement(ch)
		require.True(t, m.Reportable(), ch)
		assert.Equal(t, 0.0, *m.Value, ch)
	}
}

func TestNormalizeLegacyESP1Shape(t *testing.T) {
	payload := `{"espId":"ESP1","soilMoisture":["74%","nan","12%"],"dht22":{"temp":"nan","hum":40}}`
	r, err := Normalize([]byte(payload), "", testNow)
	require.NoError(t, err)

	assert.Equal(t, "ESP1", r.DeviceID)
	m1 := r.Measurement(messages.SoilMoistureChannel(1))
	require.True(t, m1.Reportable())
	assert.Equal(t, 74.0, *m1.Value)
	assert.Equal(t, model.StatusNotWorking, r.Measurement(messages.SoilMoistureChannel(2)).Status)
	assert.Equal(t, model.StatusNotWorking, r.Measurement(messages.ChannelAirTemperature).Status)
	hum := r.Measurement(messages.ChannelAirHumidity)
	require.True(t, hum.Reportable())
	assert.Equal(t, 40.0, *hum.Value)
}

func TestNormalizeLegacyESP2Shape(t *testing.T) {
	payload := `{"espId":"ESP2","soilTemp":{"value":21.5,"status":"OK"},` +
		`"airQuality":{"value":310},"lightIntensity":{"value":8000,"status":"Not working"}}`
	r, err := Normalize([]byte(payload), "", testNow)
	require.NoError(t, err)

	wt := r.Measurement(messages.ChannelWaterTemperature)
	require.True(t, wt.Reportable())
	assert.Equal(t, 21.5, *wt.Value)
	aq := r.Measurement(messages.ChannelAirQuality)
	require.True(t, aq.Reportable())
	assert.Equal(t, 310.0, *aq.Value)
	// an explicit non-OK status wins over the numeric value
	assert.Equal(t, model.StatusNotWorking, r.Measurement(messages.ChannelLight).Status)
}

func TestNormalizeCanonicalMeasurementsWinOverLegacy(t *testing.T) {
	payload := `{"deviceId":"rpi1",` +
		`"measurements":{"air-temperature":{"value":18.2,"status":"ok"}},` +
		`"temperature":99}`
	r, err := Normalize([]byte(payload), "", testNow)
	require.NoError(t, err)
	m := r.Measurement(messages.ChannelAirTemperature)
	require.True(t, m.Reportable())
	assert.Equal(t, 18.2, *m.Value)
}

func TestNormalizeFlatRaspberryShape(t *testing.T) {
	payload := `{"device":"rpi1","temperature":24.1,"humidity":55,"ph":6.4,"ec":1.8,"soil_moisture":62,"light":12000}`
	r, err := Normalize([]byte(payload), "", testNow)
	require.NoError(t, err)
	assert.Equal(t, "rpi1", r.DeviceID)
	for ch, want := range map[string]float64{
		messages.ChannelAirTemperature:  24.1,
		messages.ChannelAirHumidity:     55,
		messages.ChannelPH:              6.4,
		messages.ChannelEC:              1.8,
		messages.SoilMoistureChannel(1): 62,
		messages.ChannelLight:           12000,
	} {
		m := r.Measurement(ch)
		require.True(t, m.Reportable(), ch)
		assert.Equal(t, want, *m.Value, ch)
	}
}

func TestNormalizeTimestampPolicy(t *testing.T) {
	t.Run("missing resolves to now", func(t *testing.T) {
		r, err := Normalize([]byte(`{"deviceId":"esp1","humidity":40}`), "", testNow)
		require.NoError(t, err)
		assert.Equal(t, testNow, r.CapturedAt)
	})

	t.Run("malformed resolves to now", func(t *testing.T) {
		r, err := Normalize([]byte(`{"deviceId":"esp1","timestamp":"yesterday-ish"}`), "", testNow)
		require.NoError(t, err)
		assert.Equal(t, testNow, r.CapturedAt)
	})

	t.Run("bare time of day combines with current date", func(t *testing.T) {
		r, err := Normalize([]byte(`{"deviceId":"esp1","timestamp":"08:15:30"}`), "", testNow)
		require.NoError(t, err)
		want := time.Date(2026, 3, 14, 8, 15, 30, 0, time.UTC)
		assert.Equal(t, want, r.CapturedAt)
	})

	t.Run("rfc3339 is honored", func(t *testing.T) {
		r, err := Normalize([]byte(`{"deviceId":"esp1","timestamp":"2026-03-13T22:00:00Z"}`), "", testNow)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 13, 22, 0, 0, 0, time.UTC), r.CapturedAt)
	})
}

func TestNormalizeRejectsUndecodablePayload(t *testing.T) {
	_, err := Normalize([]byte(`this is not json`), "esp1", testNow)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestNormalizeRequiresDeviceID(t *testing.T) {
	_, err := Normalize([]byte(`{"humidity":40}`), "", testNow)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))

	// fallback device from the transport (topic, route) is accepted
	r, err := Normalize([]byte(`{"humidity":40}`), "esp2", testNow)
	require.NoError(t, err)
	assert.Equal(t, "esp2", r.DeviceID)
}

func TestSanitizeTokensLeavesStringsAlone(t *testing.T) {
	in := `{"note":"NaN undefined Infinity","temperature":NaN}`
	out := string(sanitizeTokens([]byte(in)))
	assert.Equal(t, `{"note":"NaN undefined Infinity","temperature":null}`, out)
}
