package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/assafrot/api-keys-app/src/middleware"
	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/realtime"
	"github.com/assafrot/api-keys-app/src/services"
)

// StreamHandler serves the viewer's change feed as Server-Sent Events
type StreamHandler struct {
	keys      *services.KeyService
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(keys *services.KeyService) *StreamHandler {
	return &StreamHandler{
		keys:      keys,
		heartbeat: 30 * time.Second,
	}
}

// snapshotPayload is the first event on every stream
type snapshotPayload struct {
	Keys       []models.APIKey `json:"keys"`
	TotalUsage int             `json:"total_usage"`
}

// writeEvent writes one named SSE event and flushes it
func writeEvent(c *gin.Context, name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

// HandleStream sends a snapshot of the owner's keys followed by every change
// visible to them, until the client disconnects
func (sh *StreamHandler) HandleStream(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID := middleware.GetOwnerID(c)
	logger := middleware.Logger(c, "stream")

	// Subscribe before the snapshot so no change falls in between
	events, err := sh.keys.Subscribe(ctx, ownerID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to subscribe")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open change stream"})
		return
	}
	keys, err := sh.keys.List(ctx, ownerID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load API keys"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	if err := writeEvent(c, "snapshot", snapshotPayload{Keys: keys, TotalUsage: services.SumUsage(keys)}); err != nil {
		return
	}

	ticker := time.NewTicker(sh.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("stream client disconnected")
			return
		case <-ticker.C:
			if _, err := c.Writer.WriteString(": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			// Deletes arrive unfiltered from the store
			if !realtime.Visible(ev, ownerID) {
				continue
			}
			if err := writeEvent(c, "change", ev); err != nil {
				return
			}
		}
	}
}
