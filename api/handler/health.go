package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/opinionprobe/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports "busy" while every worker slot is taken.
func Health(runner Runner, runs *Runs, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := runner.ActiveTasks()
		workers := runner.Workers()

		status := "healthy"
		if workers > 0 && active >= workers {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      status,
			Uptime:      time.Since(startTime).Round(time.Second).String(),
			ActiveRuns:  runs.ActiveRuns(),
			ActiveTasks: active,
			MaxWorkers:  workers,
			Version:     Version,
		})
	}
}
