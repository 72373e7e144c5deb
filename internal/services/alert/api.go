package alert

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model"
)

// RegisterRoutes exposes the per-user threshold configuration:
// GET /api/alerts/config/:userId and PUT /api/alerts/config/:userId.
func RegisterRoutes(r gin.IRouter, store *Store) {
	r.GET("/api/alerts/config/:userId", func(c *gin.Context) {
		t := store.Get(c.Param("userId"))
		if t == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no alert configuration for user"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"thresholds": t})
	})

	r.PUT("/api/alerts/config/:userId", func(c *gin.Context) {
		var body struct {
			Thresholds model.AlertThresholds `json:"thresholds"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threshold configuration: " + err.Error()})
			return
		}
		for channel, band := range body.Thresholds {
			if band.Min > band.Max {
				c.JSON(http.StatusBadRequest, gin.H{"error": "min exceeds max for channel " + channel})
				return
			}
		}
		store.Put(c.Param("userId"), body.Thresholds)
		c.JSON(http.StatusOK, gin.H{"thresholds": store.Get(c.Param("userId"))})
	})
}
