package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-dept-api/internal/service"
)

type dbPinger interface {
	PingContext(ctx context.Context) error
}

// OpsHandler serves the operational endpoints: liveness, readiness, and
// the Prometheus scrape target.
type OpsHandler struct {
	metrics *service.MetricsService
	db      dbPinger
}

// NewOpsHandler constructs an operational handler.
func NewOpsHandler(metrics *service.MetricsService, db dbPinger) *OpsHandler {
	return &OpsHandler{metrics: metrics, db: db}
}

// Health reports process liveness.
func (h *OpsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the service can reach its database.
func (h *OpsHandler) Ready(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Prometheus exposes the metrics registry.
func (h *OpsHandler) Prometheus(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
