package actuator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(dev DeviceClient) *gin.Engine {
	gin.SetMode(gin.TestMode)
	gw := NewGateway(NewMemoryStateStore(), dev, &fakeStatePublisher{}, zap.NewNop()).
		WithRetry(2, time.Millisecond)
	r := gin.New()
	RegisterRoutes(r, gw)
	return r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWaterPumpSettingsRoundTrip(t *testing.T) {
	r := newTestRouter(&fakeDevice{})

	w := doJSON(r, http.MethodPost, "/api/waterpump/settings",
		`{"espId":"esp3","onDuration":30,"offDuration":600}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Settings struct {
			DeviceID        string `json:"deviceId"`
			OnDurationSec   int    `json:"onDurationSec"`
			ConfirmedActive bool   `json:"confirmedActive"`
		} `json:"settings"`
		DeviceError string `json:"deviceError"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "esp3", resp.Settings.DeviceID)
	assert.Equal(t, 30, resp.Settings.OnDurationSec)
	assert.True(t, resp.Settings.ConfirmedActive)
	assert.Empty(t, resp.DeviceError)

	w = doJSON(r, http.MethodGet, "/api/waterpump/esp3", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWaterPumpSettingsOutOfRange(t *testing.T) {
	r := newTestRouter(&fakeDevice{})

	w := doJSON(r, http.MethodPost, "/api/waterpump/settings",
		`{"espId":"esp3","onDuration":0,"offDuration":600}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWaterPumpPartialSuccessReportsDeviceError(t *testing.T) {
	r := newTestRouter(&fakeDevice{err: timeoutErr{}})

	w := doJSON(r, http.MethodPost, "/api/waterpump/settings",
		`{"espId":"esp1","onDuration":30,"offDuration":600}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "deviceError")
	assert.Contains(t, resp["deviceError"], "unreachable")

	// the schedule is still queryable: desired state was persisted
	w = doJSON(r, http.MethodGet, "/api/waterpump/esp1", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDosingSettingsReturnsCalculatedValues(t *testing.T) {
	r := newTestRouter(&fakeDevice{})

	w := doJSON(r, http.MethodPost, "/api/peristaltic/pump/settings",
		`{"pumpNumber":2,"targetVolume":100,"flowRate":50}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Calculated calculatedValues `json:"calculatedValues"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 120, resp.Calculated.DurationSec)
	assert.Equal(t, 131, resp.Calculated.DriveLevel)
}

func TestDosingUnknownPumpIsNotFound(t *testing.T) {
	r := newTestRouter(&fakeDevice{})

	w := doJSON(r, http.MethodGet, "/api/peristaltic/pump/3", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPost, "/api/peristaltic/pump/3/stop", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDosingStopHaltsPump(t *testing.T) {
	r := newTestRouter(&fakeDevice{})

	w := doJSON(r, http.MethodPost, "/api/peristaltic/pump/settings",
		`{"pumpNumber":1,"targetVolume":200}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/api/peristaltic/pump/1/stop", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Settings struct {
			ConfirmedActive bool `json:"confirmedActive"`
		} `json:"settings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Settings.ConfirmedActive)
}

func TestHTTPDeviceClientPostsDosingCommand(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/peristaltic/control" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string]map[string]int
		_ = json.NewDecoder(r.Body).Decode(&body)
		got.Store(body["peristaltic"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewHTTPDeviceClient(srv.URL, time.Second)
	err := client.PushDosing(context.Background(), 2, 131, 120)
	require.NoError(t, err)

	sent, _ := got.Load().(map[string]int)
	assert.Equal(t, map[string]int{"pump": 2, "pwm": 131, "duration": 120}, sent)
}

func TestHTTPDeviceClientErrorStatusIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPDeviceClient(srv.URL, time.Second)
	err := client.PushPumpStop(context.Background(), "esp1")
	require.Error(t, err)
	assert.False(t, IsRetryable(err), "a device that answered has made up its mind")
}

func TestIsRetryableClassification(t *testing.T) {
	assert.True(t, IsRetryable(timeoutErr{}))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(assert.AnError))
}
