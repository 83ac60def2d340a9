package handlers

import (
	"net/http"

	"das-service/internal/monitoring"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports liveness plus the processing counters.
type HealthHandler struct {
	service   string
	collector *monitoring.Collector
}

func NewHealthHandler(service string, collector *monitoring.Collector) *HealthHandler {
	return &HealthHandler{service: service, collector: collector}
}

func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{"status": "UP", "service": h.service}
	if h.collector != nil {
		snap := h.collector.Snapshot()
		body["metrics"] = snap
		body["topIssues"] = snap.TopIssues(3)
	}
	c.JSON(http.StatusOK, body)
}
