package actuator

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type pumpSettingsRequest struct {
	DeviceID       string `json:"espId"`
	OnDurationSec  int    `json:"onDuration"`
	OffDurationSec int    `json:"offDuration"`
}

type dosingSettingsRequest struct {
	PumpNumber     int      `json:"pumpNumber"`
	TargetVolumeMl float64  `json:"targetVolume"`
	FlowRate       *float64 `json:"flowRate"`
}

type calculatedValues struct {
	DriveLevel  int `json:"driveLevel"`
	DurationSec int `json:"durationSeconds"`
}

// RegisterRoutes mounts the actuator control endpoints.
func RegisterRoutes(r gin.IRouter, gw *Gateway) {
	wp := r.Group("/api/waterpump")
	wp.POST("/settings", applyPumpSettings(gw))
	wp.GET("/:espId", getPump(gw))
	wp.POST("/:espId/stop", stopPump(gw))

	dp := r.Group("/api/peristaltic")
	dp.POST("/pump/settings", applyDosingSettings(gw))
	dp.GET("/pumps", listDosing(gw))
	dp.GET("/pump/:pumpNumber", getDosing(gw))
	dp.POST("/pump/:pumpNumber/stop", stopDosing(gw))
}

func applyPumpSettings(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pumpSettingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		res, err := gw.ApplyPumpSettings(c.Request.Context(), req.DeviceID, req.OnDurationSec, req.OffDurationSec)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, pumpResponse(res))
	}
}

func getPump(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, ok := gw.GetPump(c.Param("espId"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "pump not configured"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"settings": state})
	}
}

func stopPump(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := gw.StopPump(c.Request.Context(), c.Param("espId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, pumpResponse(res))
	}
}

func applyDosingSettings(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dosingSettingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		res, err := gw.ApplyDosingSettings(c.Request.Context(), req.PumpNumber, req.TargetVolumeMl, req.FlowRate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, dosingResponse(res))
	}
}

func listDosing(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pumps": gw.ListDosing()})
	}
}

func getDosing(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := strconv.Atoi(c.Param("pumpNumber"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pump number must be an integer"})
			return
		}
		state, ok := gw.GetDosing(n)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "pump not configured"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"settings": state})
	}
}

func stopDosing(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := strconv.Atoi(c.Param("pumpNumber"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pump number must be an integer"})
			return
		}
		res, err := gw.StopDosing(c.Request.Context(), n)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, dosingResponse(res))
	}
}

// pumpResponse reports the persisted settings and, when the controller could
// not be reached, the communication failure alongside them.
func pumpResponse(res PumpResult) gin.H {
	out := gin.H{"settings": res.State}
	if res.DeviceErr != nil {
		out["deviceError"] = res.DeviceErr.Error()
	}
	return out
}

func dosingResponse(res DosingResult) gin.H {
	out := gin.H{
		"settings":         res.State,
		"calculatedValues": calculatedValues{DriveLevel: res.DriveLevel, DurationSec: res.DurationSec},
	}
	if res.DeviceErr != nil {
		out["deviceError"] = res.DeviceErr.Error()
	}
	return out
}
