package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assafrot/api-keys-app/src/middleware"
	"github.com/assafrot/api-keys-app/src/services"
)

// Response messages for the validation endpoint
const (
	MsgKeyValid          = "API key is valid"
	MsgKeyRequired       = "API key is required"
	MsgInvalidFormat     = "Invalid API key format"
	MsgInvalidKey        = "Invalid API key"
	MsgKeyDisabled       = "API key is disabled"
	MsgUsageExceeded     = "API key usage limit exceeded"
	MsgDatabaseError     = "Database error occurred"
	MsgInternalError     = "Internal server error"
	MsgProtectedEndpoint = "Protected endpoint - POST an API key to validate access"
)

// maxValidateBody caps the validation request body. {"apiKey": "..."} fits
// many times over.
const maxValidateBody = 4 * 1024

// UsageRecorder counts a successful validation against a key
type UsageRecorder interface {
	RecordUsage(ctx context.Context, id string) error
}

// ProtectedHandler serves the key validation endpoint
type ProtectedHandler struct {
	validator *services.ValidationService
	usage     UsageRecorder
	analytics *services.AnalyticsService
}

// NewProtectedHandler creates a new protected handler. usage may be nil, in
// which case validation never writes to the store.
func NewProtectedHandler(validator *services.ValidationService, usage UsageRecorder, analytics *services.AnalyticsService) *ProtectedHandler {
	return &ProtectedHandler{
		validator: validator,
		usage:     usage,
		analytics: analytics,
	}
}

// ValidationData is the payload of a successful validation
type ValidationData struct {
	KeyID             string `json:"keyId"`
	KeyName           string `json:"keyName"`
	Usage             int    `json:"usage"`
	MonthlyLimit      int    `json:"monthlyLimit"`
	RemainingRequests int    `json:"remainingRequests"`
}

// ValidationResponse is returned with 200
type ValidationResponse struct {
	Message string         `json:"message"`
	Data    ValidationData `json:"data"`
}

type failure struct {
	status  int
	message string
}

var verdictFailures = map[services.Outcome]failure{
	services.OutcomeMissingKey:       {http.StatusBadRequest, MsgKeyRequired},
	services.OutcomeInvalidFormat:    {http.StatusUnauthorized, MsgInvalidFormat},
	services.OutcomeKeyNotFound:      {http.StatusUnauthorized, MsgInvalidKey},
	services.OutcomeKeyDisabled:      {http.StatusUnauthorized, MsgKeyDisabled},
	services.OutcomeQuotaExceeded:    {http.StatusTooManyRequests, MsgUsageExceeded},
	services.OutcomeStoreUnavailable: {http.StatusInternalServerError, MsgDatabaseError},
}

// HandleValidate checks the key in {"apiKey": "..."}
func (ph *ProtectedHandler) HandleValidate(c *gin.Context) {
	var body map[string]interface{}
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxValidateBody+1))
	if err != nil || len(raw) > maxValidateBody || json.Unmarshal(raw, &body) != nil {
		// unreadable, oversized and non-object bodies carry no key
		body = nil
	}

	ctx := c.Request.Context()
	verdict := ph.validator.ValidateValue(ctx, body["apiKey"])
	ph.analytics.TrackKeyValidated(ctx, verdict.KeyID, verdict.Outcome.String())

	if !verdict.Valid() {
		f, ok := verdictFailures[verdict.Outcome]
		if !ok {
			f = failure{http.StatusInternalServerError, MsgInternalError}
		}
		c.JSON(f.status, gin.H{"error": f.message})
		return
	}

	if ph.usage != nil {
		if err := ph.usage.RecordUsage(ctx, verdict.KeyID); err != nil {
			middleware.Logger(c, "protected").Warn().Err(err).Str("key_id", verdict.KeyID).Msg("failed to record usage")
		}
	}

	c.JSON(http.StatusOK, ValidationResponse{
		Message: MsgKeyValid,
		Data: ValidationData{
			KeyID:             verdict.KeyID,
			KeyName:           verdict.KeyName,
			Usage:             verdict.Usage,
			MonthlyLimit:      verdict.MonthlyLimit,
			RemainingRequests: verdict.Remaining,
		},
	})
}

// HandleInfo answers GET with a usage hint
func (ph *ProtectedHandler) HandleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": MsgProtectedEndpoint})
}

// Recovery turns panics into the generic 500 body
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		middleware.Logger(c, "recovery").Error().Interface("panic", recovered).Msg("handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": MsgInternalError})
	})
}
