package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// OwnerCookieName carries the owner JWT for browser sessions
	OwnerCookieName = "owner_token"

	// OwnerIDKey and UsernameKey are the gin context keys set by OwnerAuthMiddleware
	OwnerIDKey  = "owner_id"
	UsernameKey = "username"

	tokenIssuer   = "api-keys-app"
	tokenLifetime = 24 * time.Hour
)

// JWTSecret should be loaded from environment via config
var JWTSecret string

// SetJWTSecret initializes the JWT secret from config
func SetJWTSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if len(secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}
	JWTSecret = secret
	return nil
}

// OwnerClaims represents JWT claims for an owner session
type OwnerClaims struct {
	OwnerID  string `json:"owner_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateOwnerToken creates a JWT for the owner and returns it with its expiry
func GenerateOwnerToken(ownerID uuid.UUID, username string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tokenLifetime)
	claims := OwnerClaims{
		OwnerID:  ownerID.String(),
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateOwnerToken verifies a JWT and returns its claims
func ValidateOwnerToken(tokenString string) (*OwnerClaims, error) {
	claims := &OwnerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(JWTSecret), nil
	}, jwt.WithIssuer(tokenIssuer))

	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.OwnerID == "" {
		return nil, fmt.Errorf("invalid token: missing owner id")
	}

	return claims, nil
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header
func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// OwnerAuthMiddleware checks for a valid owner JWT in the cookie or Authorization header
func OwnerAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string

		// Try to get token from cookie first
		if cookie, err := c.Cookie(OwnerCookieName); err == nil {
			token = cookie
		}

		// Fall back to Authorization header
		if token == "" {
			token = bearerToken(c)
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authentication token"})
			return
		}

		claims, err := ValidateOwnerToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(OwnerIDKey, claims.OwnerID)
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}

// GetOwnerID returns the authenticated owner id, or "" outside OwnerAuthMiddleware
func GetOwnerID(c *gin.Context) string {
	return c.GetString(OwnerIDKey)
}
