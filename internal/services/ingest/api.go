package ingest

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model/messages"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/services/persistence"
)

const exportPageSize = 500

// RegisterRoutes mounts telemetry submission, history and CSV export.
// The per-board paths exist for firmware that cannot name itself in the
// payload; the path segment becomes the fallback device id.
func RegisterRoutes(r gin.IRouter, svc *Service, store persistence.Store) {
	r.POST("/data", submit(svc, ""))
	r.POST("/data/esp1", submit(svc, "esp1"))
	r.POST("/data/esp2", submit(svc, "esp2"))
	r.GET("/data", queryData(store))
	r.GET("/data/export", exportCSV(store))
}

func submit(svc *Service, fallbackDevice string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
			return
		}
		reading, err := svc.Ingest(c.Request.Context(), raw, fallbackDevice)
		if err != nil {
			if model.IsValidation(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "data could not be stored"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message":    "data saved",
			"deviceId":   reading.DeviceID,
			"capturedAt": reading.CapturedAt,
		})
	}
}

func queryData(store persistence.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := filterFromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		page, err := store.Query(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func exportCSV(store persistence.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := filterFromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Limit = exportPageSize

		var rows []model.SensorReading
		for page := 1; ; page++ {
			filter.Page = page
			res, err := store.Query(c.Request.Context(), filter)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
				return
			}
			rows = append(rows, res.Items...)
			if page >= res.TotalPages {
				break
			}
		}
		if len(rows) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "no data for the selected range"})
			return
		}

		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="sensor-data.csv"`)
		writeCSV(c.Writer, rows)
	}
}

func writeCSV(w http.ResponseWriter, rows []model.SensorReading) {
	channels := messages.KnownChannels()
	cw := csv.NewWriter(w)

	header := append([]string{"timestamp", "deviceId"}, channels...)
	_ = cw.Write(header)

	for _, r := range rows {
		record := make([]string, 0, len(header))
		record = append(record, r.CapturedAt.Format(time.RFC3339), r.DeviceID)
		for _, ch := range channels {
			record = append(record, renderCell(ch, r.Measurement(ch)))
		}
		_ = cw.Write(record)
	}
	cw.Flush()
}

// renderCell formats one measurement for export. Soil moisture is a
// percentage; anything non-reportable renders as "Not working".
func renderCell(channel string, m model.Measurement) string {
	if !m.Reportable() {
		return "Not working"
	}
	if isSoilMoisture(channel) {
		return strconv.FormatFloat(*m.Value, 'f', -1, 64) + "%"
	}
	return strconv.FormatFloat(*m.Value, 'f', -1, 64)
}

func isSoilMoisture(channel string) bool {
	for i := 1; i <= messages.SoilMoistureSlots; i++ {
		if channel == messages.SoilMoistureChannel(i) {
			return true
		}
	}
	return false
}

func filterFromQuery(c *gin.Context) (persistence.QueryFilter, error) {
	filter := persistence.QueryFilter{DeviceID: c.Query("deviceId")}

	var err error
	if filter.From, err = parseQueryTime(c.Query("startDate"), false); err != nil {
		return filter, fmt.Errorf("invalid startDate: %w", err)
	}
	if filter.To, err = parseQueryTime(c.Query("endDate"), true); err != nil {
		return filter, fmt.Errorf("invalid endDate: %w", err)
	}
	if v := c.Query("page"); v != "" {
		if filter.Page, err = strconv.Atoi(v); err != nil {
			return filter, fmt.Errorf("invalid page: %w", err)
		}
	}
	if v := c.Query("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			return filter, fmt.Errorf("invalid limit: %w", err)
		}
	}
	return filter, nil
}

// parseQueryTime accepts RFC3339 or a bare date. A bare end date covers the
// whole day.
func parseQueryTime(v string, endOfDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
