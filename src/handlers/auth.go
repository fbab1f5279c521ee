package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/assafrot/api-keys-app/src/middleware"
	"github.com/assafrot/api-keys-app/src/services"
)

// AuthHandler handles owner login and logout
type AuthHandler struct {
	owners       *services.OwnerService
	secureCookie bool
}

// NewAuthHandler creates a new auth handler. secureCookie should be false
// only for plain-HTTP local development.
func NewAuthHandler(owners *services.OwnerService, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		owners:       owners,
		secureCookie: secureCookie,
	}
}

// LoginRequest represents the request body for owner login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response for successful login
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// HandleLogin authenticates an owner and returns a JWT
func (ah *AuthHandler) HandleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}

	owner, err := ah.owners.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, services.ErrInvalidCredentials) {
			middleware.Logger(c, "auth").Error().Err(err).Msg("login failed")
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	token, expiresAt, err := middleware.GenerateOwnerToken(owner.ID, owner.Username)
	if err != nil {
		middleware.Logger(c, "auth").Error().Err(err).Msg("failed to sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		middleware.OwnerCookieName,
		token,
		int(time.Until(expiresAt).Seconds()),
		"/",
		"",
		ah.secureCookie,
		true, // HttpOnly
	)

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
	})
}

// HandleLogout clears the owner token cookie
func (ah *AuthHandler) HandleLogout(c *gin.Context) {
	c.SetCookie(middleware.OwnerCookieName, "", -1, "/", "", ah.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// StatusResponse represents the response for an authentication status check
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	OwnerID       string `json:"owner_id"`
	Username      string `json:"username"`
}

// HandleStatus returns the current owner, behind OwnerAuthMiddleware
func (ah *AuthHandler) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Authenticated: true,
		OwnerID:       middleware.GetOwnerID(c),
		Username:      c.GetString(middleware.UsernameKey),
	})
}
