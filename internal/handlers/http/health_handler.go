package http

import (
	"context"
	"net/http"
	"time"

	"rillscope/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checker      *monitoring.HealthChecker
	startedAt    time.Time
	readyTimeout time.Duration
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker *monitoring.HealthChecker, startedAt time.Time) *HealthHandler {
	return &HealthHandler{
		checker:      checker,
		startedAt:    startedAt,
		readyTimeout: 2 * time.Second,
	}
}

// SetupRoutes mounts /health and /ready.
func (h *HealthHandler) SetupRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

// Health is a liveness probe. It reports the last background results but
// never fails.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    monitoring.StatusHealthy,
		"timestamp": time.Now(),
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"checks":    h.checker.LastResults(),
	})
}

// Ready runs every check and fails with 503 when one fails.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.readyTimeout)
	defer cancel()

	status := h.checker.GetReadinessStatus(ctx)
	code := http.StatusOK
	if status.Status != monitoring.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
