package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// Version is stamped at build time via -ldflags
var Version = "dev"

// HealthChecker is anything that can report backing store health
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	store     HealthChecker
	storeKind string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store HealthChecker, storeKind string) *HealthHandler {
	return &HealthHandler{
		store:     store,
		storeKind: storeKind,
	}
}

// HandleHealth returns health status with a store check
func (hh *HealthHandler) HandleHealth(c *gin.Context) {
	start := time.Now()
	err := hh.store.Health(c.Request.Context())
	latency := time.Since(start)

	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"store":  "disconnected",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"store":         "connected",
		"store_kind":    hh.storeKind,
		"store_latency": latency.String(),
		"uptime":        time.Since(startTime).String(),
	})
}

// HandleInfo returns service information
func (hh *HealthHandler) HandleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "api-keys-app",
		"version": Version,
		"status":  "running",
		"uptime":  time.Since(startTime).String(),
	})
}

// HandleReady returns readiness status (for load balancers)
func (hh *HealthHandler) HandleReady(c *gin.Context) {
	if err := hh.store.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}
