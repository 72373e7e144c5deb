package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model/messages"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/services/alert"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/services/persistence"
)

func newTestRouter(store persistence.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc, _, _ := newTestServiceFor(store)
	r := gin.New()
	RegisterRoutes(r, svc, store)
	return r
}

func newTestServiceFor(store persistence.Store) (*Service, *fakeBroadcaster, *alert.Store) {
	hub := newFakeBroadcaster()
	alerts := alert.NewStore()
	return NewService(store, hub, alerts, zap.NewNop()), hub, alerts
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitReturnsCreatedWithResolvedTimestamp(t *testing.T) {
	r := newTestRouter(persistence.NewMemoryStore())

	w := doRequest(r, http.MethodPost, "/data", `{"deviceId":"esp1","dht22":{"temp":22,"hum":55}}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		DeviceID   string    `json:"deviceId"`
		CapturedAt time.Time `json:"capturedAt"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "esp1", resp.DeviceID)
	assert.WithinDuration(t, time.Now(), resp.CapturedAt, 5*time.Second)
}

func TestSubmitLegacyPathSuppliesDeviceID(t *testing.T) {
	store := persistence.NewMemoryStore()
	r := newTestRouter(store)

	w := doRequest(r, http.MethodPost, "/data/esp2", `{"waterTemp":19.5,"airQuality":130}`)
	require.Equal(t, http.StatusCreated, w.Code)

	page, err := store.Query(context.Background(), persistence.QueryFilter{DeviceID: "esp2"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "esp2", page.Items[0].DeviceID)
}

func TestSubmitUnparseableBodyIsBadRequest(t *testing.T) {
	r := newTestRouter(persistence.NewMemoryStore())

	w := doRequest(r, http.MethodPost, "/data", "not json at all")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitStoreFaultIsServerError(t *testing.T) {
	r := newTestRouter(failingStore{})

	w := doRequest(r, http.MethodPost, "/data", `{"deviceId":"esp1","hum":42}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestQueryDataPaginationShape(t *testing.T) {
	store := persistence.NewMemoryStore()
	base := time.Now().UTC()
	for i := 0; i < 25; i++ {
		require.NoError(t, store.Append(context.Background(), model.SensorReading{
			DeviceID:   "esp1",
			CapturedAt: base.Add(-time.Duration(i) * time.Minute),
			Measurements: map[string]model.Measurement{
				"ph": messages.OK(6.1),
			},
		}))
	}
	r := newTestRouter(store)

	w := doRequest(r, http.MethodGet, "/data?deviceId=esp1&page=2&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var page persistence.Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Len(t, page.Items, 10)
}

func TestQueryDataRejectsBadDates(t *testing.T) {
	r := newTestRouter(persistence.NewMemoryStore())

	w := doRequest(r, http.MethodGet, "/data?startDate=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportCSVRendersChannelsAndGaps(t *testing.T) {
	store := persistence.NewMemoryStore()
	require.NoError(t, store.Append(context.Background(), model.SensorReading{
		DeviceID:   "esp1",
		CapturedAt: time.Now().UTC(),
		Measurements: map[string]model.Measurement{
			messages.SoilMoistureChannel(1):  messages.OK(55),
			messages.ChannelAirTemperature:   messages.OK(24.5),
			messages.ChannelAirHumidity:      messages.NotWorking(),
		},
	}))
	r := newTestRouter(store)

	w := doRequest(r, http.MethodGet, "/data/export?deviceId=esp1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")

	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	header := records[0]
	assert.Equal(t, append([]string{"timestamp", "deviceId"}, messages.KnownChannels()...), header)

	row := records[1]
	col := func(name string) string {
		for i, h := range header {
			if h == name {
				return row[i]
			}
		}
		t.Fatalf("column %s missing", name)
		return ""
	}
	assert.Equal(t, "esp1", col("deviceId"))
	assert.Equal(t, "55%", col("soil-moisture-1"))
	assert.Equal(t, "24.5", col("air-temperature"))
	assert.Equal(t, "Not working", col("air-humidity"))
	assert.Equal(t, "Not working", col("ph"), "channels the device never reported render as gaps")
}

func TestExportCSVEmptyRangeIsNotFound(t *testing.T) {
	r := newTestRouter(persistence.NewMemoryStore())

	w := doRequest(r, http.MethodGet, "/data/export?startDate=2020-01-01&endDate=2020-01-02", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
