package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assafrot/api-keys-app/src/middleware"
	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/services"
)

// KeysHandler serves the owner-scoped key management API
type KeysHandler struct {
	keys      *services.KeyService
	analytics *services.AnalyticsService
}

// NewKeysHandler creates a new keys handler
func NewKeysHandler(keys *services.KeyService, analytics *services.AnalyticsService) *KeysHandler {
	return &KeysHandler{
		keys:      keys,
		analytics: analytics,
	}
}

type keyOperation int

const (
	opCreate keyOperation = iota
	opUpdate
	opDelete
)

// User-facing messages per operation
var (
	duplicateNameMsg = map[keyOperation]string{
		opCreate: "A key with this name already exists",
		opUpdate: "Another API key with this name already exists",
	}
	permissionMsg = map[keyOperation]string{
		opCreate: "You do not have permission to create API keys",
		opUpdate: "You do not have permission to update this API key",
		opDelete: "You do not have permission to delete this API key",
	}
	fallbackMsg = map[keyOperation]string{
		opCreate: "Failed to create API key. Please try again.",
		opUpdate: "Failed to update API key. Please try again.",
		opDelete: "Failed to delete API key. Please try again.",
	}
)

const (
	msgKeyConflict    = "This API key configuration already exists"
	msgReferenced     = "Cannot delete this API key as it is being used by other services"
	msgKeyNotFound    = "API key not found"
	msgNameRequired   = "Key name is required"
	msgInvalidLimit   = "Monthly limit must be a positive number"
	msgInvalidUpdate  = "Invalid update"
	msgInvalidRequest = "invalid request body"
)

// respondKeyError maps a KeyService error to a status and message
func respondKeyError(c *gin.Context, op keyOperation, err error) {
	status, msg := http.StatusInternalServerError, fallbackMsg[op]

	switch {
	case errors.Is(err, services.ErrDuplicateName):
		status, msg = http.StatusConflict, duplicateNameMsg[op]
	case errors.Is(err, services.ErrKeyConflict):
		status, msg = http.StatusConflict, msgKeyConflict
	case errors.Is(err, services.ErrPermissionDenied):
		status, msg = http.StatusForbidden, permissionMsg[op]
	case errors.Is(err, services.ErrConflictingReference):
		status, msg = http.StatusConflict, msgReferenced
	case errors.Is(err, services.ErrNotFoundOrForbidden):
		status, msg = http.StatusNotFound, msgKeyNotFound
	case errors.Is(err, services.ErrNameRequired):
		status, msg = http.StatusBadRequest, msgNameRequired
	case errors.Is(err, services.ErrInvalidLimit):
		status, msg = http.StatusBadRequest, msgInvalidLimit
	case errors.Is(err, services.ErrInvalidUpdate):
		status, msg = http.StatusBadRequest, msgInvalidUpdate
	}

	if status >= http.StatusInternalServerError {
		middleware.Logger(c, "keys").Error().Err(err).Msg("key operation failed")
	}
	c.JSON(status, gin.H{"error": msg})
}

// KeyListResponse is the body of GET /api/keys
type KeyListResponse struct {
	Keys       []models.APIKey `json:"keys"`
	TotalUsage int             `json:"total_usage"`
}

// HandleList returns the owner's keys, newest first
func (kh *KeysHandler) HandleList(c *gin.Context) {
	keys, err := kh.keys.List(c.Request.Context(), middleware.GetOwnerID(c))
	if err != nil {
		middleware.Logger(c, "keys").Error().Err(err).Msg("failed to list keys")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load API keys"})
		return
	}

	c.JSON(http.StatusOK, KeyListResponse{
		Keys:       keys,
		TotalUsage: services.SumUsage(keys),
	})
}

// HandleGet returns one key
func (kh *KeysHandler) HandleGet(c *gin.Context) {
	key, err := kh.keys.Get(c.Request.Context(), middleware.GetOwnerID(c), c.Param("id"))
	if err != nil {
		respondKeyError(c, opUpdate, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

// CreateKeyRequest is the body of POST /api/keys. MonthlyLimit is loosely
// typed: numbers and numeric strings are accepted.
type CreateKeyRequest struct {
	Name         string      `json:"name"`
	MonthlyLimit interface{} `json:"monthlyLimit"`
}

// HandleCreate issues a new key
func (kh *KeysHandler) HandleCreate(c *gin.Context) {
	var req CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}

	ownerID := middleware.GetOwnerID(c)
	key, err := kh.keys.Create(c.Request.Context(), ownerID, req.Name, req.MonthlyLimit)
	if err != nil {
		respondKeyError(c, opCreate, err)
		return
	}

	kh.analytics.TrackKeyCreated(c.Request.Context(), ownerID, key.ID, key.MonthlyLimit)
	c.JSON(http.StatusCreated, key)
}

// HandleUpdate applies a partial update
func (kh *KeysHandler) HandleUpdate(c *gin.Context) {
	var patch models.APIKeyPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}

	key, err := kh.keys.Update(c.Request.Context(), middleware.GetOwnerID(c), c.Param("id"), patch)
	if err != nil {
		respondKeyError(c, opUpdate, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

// HandleToggle flips is_active
func (kh *KeysHandler) HandleToggle(c *gin.Context) {
	key, err := kh.keys.Toggle(c.Request.Context(), middleware.GetOwnerID(c), c.Param("id"))
	if err != nil {
		respondKeyError(c, opUpdate, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

// HandleReset sets usage back to zero
func (kh *KeysHandler) HandleReset(c *gin.Context) {
	key, err := kh.keys.ResetUsage(c.Request.Context(), middleware.GetOwnerID(c), c.Param("id"))
	if err != nil {
		respondKeyError(c, opUpdate, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

// HandleDelete removes a key
func (kh *KeysHandler) HandleDelete(c *gin.Context) {
	ownerID, id := middleware.GetOwnerID(c), c.Param("id")
	if err := kh.keys.Delete(c.Request.Context(), ownerID, id); err != nil {
		respondKeyError(c, opDelete, err)
		return
	}

	kh.analytics.TrackKeyDeleted(c.Request.Context(), ownerID, id)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
