package handlers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"expat-market.storefront/pkg/logger"
)

// HealthHandler reports process liveness.
type HealthHandler struct {
	environment string
	version     string
	started     time.Time
	now         func() time.Time
	readMem     func(*runtime.MemStats)
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(environment, version string) *HealthHandler {
	if version == "" {
		version = "1.0.0"
	}
	return &HealthHandler{
		environment: environment,
		version:     version,
		started:     time.Now(),
		now:         time.Now,
		readMem:     runtime.ReadMemStats,
	}
}

type memoryUsage struct {
	Used  uint64 `json:"used"`
	Total uint64 `json:"total"`
}

type healthResponse struct {
	Status      string      `json:"status"`
	Timestamp   string      `json:"timestamp"`
	Uptime      float64     `json:"uptime"`
	Environment string      `json:"environment"`
	Version     string      `json:"version"`
	Memory      memoryUsage `json:"memory"`
}

// GetHealth returns the health report.
// GET /api/health
func (h *HealthHandler) GetHealth(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(c.Request.Context(), "Health check failed", zap.Any("panic", r))
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":    "unhealthy",
				"timestamp": h.now().UTC().Format(time.RFC3339Nano),
				"error":     fmt.Sprint(r),
			})
		}
	}()

	var mem runtime.MemStats
	h.readMem(&mem)

	now := h.now()
	c.JSON(http.StatusOK, healthResponse{
		Status:      "healthy",
		Timestamp:   now.UTC().Format(time.RFC3339Nano),
		Uptime:      now.Sub(h.started).Seconds(),
		Environment: h.environment,
		Version:     h.version,
		Memory: memoryUsage{
			Used:  toMB(mem.HeapAlloc),
			Total: toMB(mem.HeapSys),
		},
	})
}

// HeadHealth answers an empty 200.
// HEAD /api/health
func (h *HealthHandler) HeadHealth(c *gin.Context) {
	c.Status(http.StatusOK)
}

func toMB(b uint64) uint64 {
	return (b + (1<<20)/2) >> 20
}
