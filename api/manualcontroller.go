package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"newsbot/orchestrator"

	"github.com/gin-gonic/gin"
)

// RegisterManualRoutes registers operator endpoints for out-of-schedule runs and resets.
func RegisterManualRoutes(r *gin.Engine, deps Dependencies) {
	g := r.Group("/api/manual")
	g.POST("/poll/:channel", handleManualPoll(deps))
	g.POST("/report", handleManualReport(deps))
	g.DELETE("/spam-keywords", handleReset(deps, deps.Counters.Reset))
	g.DELETE("/poll-timestamps", handleResetWatermarks(deps))
	g.DELETE("/articles", handleReset(deps, deps.Store.DeleteArticles))
	g.DELETE("/delivery-logs", handleReset(deps, deps.Store.DeleteDeliveries))
	g.DELETE("/all", handleResetAll(deps))
}

// handleManualPoll runs one cycle synchronously and returns its report
func handleManualPoll(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		channel := c.Param("channel")
		report, err := deps.Runner.RunOnce(c.Request.Context(), channel)
		switch {
		case errors.Is(err, orchestrator.ErrUnknownChannel):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, orchestrator.ErrCycleInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusOK, report)
		}
	}
}

// handleManualReport sends the daily report for ?date=YYYY-MM-DD, yesterday by default
func handleManualReport(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Reporter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "daily report is not configured"})
			return
		}

		day := time.Now().In(deps.Location).AddDate(0, 0, -1)
		if s := c.Query("date"); s != "" {
			parsed, err := time.ParseInLocation(time.DateOnly, s, deps.Location)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
				return
			}
			day = parsed
		}

		report, err := deps.Reporter.Send(c.Request.Context(), day)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "report": report})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func handleReset(deps Dependencies, reset func(ctx context.Context) (int64, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := reset(c.Request.Context())
		if err != nil {
			deps.Logger.Error("api: reset failed", "path", c.FullPath(), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		deps.Logger.Info("api: reset", "path", c.FullPath(), "removed", n)
		c.JSON(http.StatusOK, gin.H{"removed": n})
	}
}

func handleResetWatermarks(deps Dependencies) gin.HandlerFunc {
	inner := handleReset(deps, deps.Watermarks.Reset)
	return func(c *gin.Context) {
		inner(c)
		if c.Writer.Status() == http.StatusOK {
			deps.Board.ClearWatermarks()
		}
	}
}

// handleResetAll clears the counter cache and every table
func handleResetAll(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		cleared, err := deps.Counters.Reset(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		removed, err := deps.Store.ResetAll(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		removed["counter_cache"] = cleared
		deps.Board.ClearWatermarks()
		deps.Logger.Info("api: reset all", "removed", removed)
		c.JSON(http.StatusOK, gin.H{"removed": removed})
	}
}
