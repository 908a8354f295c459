package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/ruz-auth/internal/lifecycle"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	probes lifecycle.HealthChecker
}

func NewHealthHandler(probes lifecycle.HealthChecker) *HealthHandler {
	return &HealthHandler{probes: probes}
}

func (h *HealthHandler) Liveness(c *gin.Context) {
	if err := h.probes.Liveness(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readiness(c *gin.Context) {
	components, err := h.probes.Readiness(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error(), "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "components": components})
}
