package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// RegisterHealthRoutes registers health and status endpoints.
func RegisterHealthRoutes(r *gin.Engine, deps Dependencies) {
	g := r.Group("/api")
	g.GET("/health", handleHealth(deps))
	g.GET("/status", handleStatus(deps))
}

// handleHealth pings the database and reports the counter cache state.
// Only a database failure makes the service unhealthy.
func handleHealth(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		cache := "up"
		if deps.Cache != nil && !deps.Cache.Available() {
			cache = "degraded"
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := deps.Store.Ping(ctx); err != nil {
			deps.Logger.Warn("api: health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "down",
				"database": "down",
				"cache":    cache,
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"database": "up",
			"cache":    cache,
		})
	}
}

// handleStatus returns a snapshot of the status board
func handleStatus(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Board.GetStatus())
	}
}
