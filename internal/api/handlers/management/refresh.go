package management

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bakame-ai/interaction-logs/internal/refresh"
)

const manualRefreshTimeout = 30 * time.Second

// TriggerRefresh runs a refresh cycle now, or waits for the one in flight.
// POST /v0/management/refresh
func (h *Handler) TriggerRefresh(c *gin.Context) {
	if h.source == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "interactions not available"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), manualRefreshTimeout)
	defer cancel()

	snap, err := h.source.Refresh(ctx)
	switch {
	case errors.Is(err, refresh.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "refresh stopped"})
		return
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "refresh timed out"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cycle_id": snap.CycleID,
		"built_at": snap.BuiltAt,
		"rows":     len(snap.Rows),
		"degraded": snap.Degraded(),
		"feeds":    snap.Feeds,
	})
}
