package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/assafrot/api-keys-app/src/handlers"
	"github.com/assafrot/api-keys-app/src/middleware"
	"github.com/assafrot/api-keys-app/src/services"
)

// devOrigins are accepted when no ALLOWED_ORIGINS are configured
var devOrigins = map[string]bool{
	"http://localhost":      true,
	"http://localhost:3000": true,
	"http://localhost:5173": true,
	"http://localhost:8080": true,
}

// Deps are the collaborators the HTTP surface needs
type Deps struct {
	Store     handlers.HealthChecker
	StoreKind string
	Keys      *services.KeyService
	Owners    *services.OwnerService
	Analytics *services.AnalyticsService

	AllowedOrigins []string
	CookieSecure   bool
	TrackUsage     bool
	ValidationRate middleware.RateLimitConfig
}

// Server owns the router and the rate limiters attached to it
type Server struct {
	router   *gin.Engine
	limiters []*middleware.RateLimiter
}

// New builds the router with every route registered
func New(deps Deps) *Server {
	s := &Server{router: gin.New()}
	r := s.router

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(handlers.Recovery())
	r.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	healthHandler := handlers.NewHealthHandler(deps.Store, deps.StoreKind)
	r.GET("/health", healthHandler.HandleHealth)
	r.GET("/ready", healthHandler.HandleReady)
	r.GET("/info", healthHandler.HandleInfo)

	// Validation endpoint, public and rate limited per IP
	var usage handlers.UsageRecorder
	if deps.TrackUsage {
		usage = deps.Keys
	}
	protectedHandler := handlers.NewProtectedHandler(services.NewValidationService(deps.Keys), usage, deps.Analytics)
	validationLimiter := s.limiter(deps.ValidationRate)
	r.POST("/api/protected", validationLimiter.Middleware(), protectedHandler.HandleValidate)
	r.GET("/api/protected", protectedHandler.HandleInfo)

	// Owner session
	authHandler := handlers.NewAuthHandler(deps.Owners, deps.CookieSecure)
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", s.limiter(middleware.AuthRateLimitConfig).Middleware(), authHandler.HandleLogin)
		authGroup.POST("/logout", authHandler.HandleLogout)
		authGroup.GET("/status", middleware.OwnerAuthMiddleware(), authHandler.HandleStatus)
	}

	// Dashboard API, scoped to the signed-in owner
	keysHandler := handlers.NewKeysHandler(deps.Keys, deps.Analytics)
	streamHandler := handlers.NewStreamHandler(deps.Keys)
	keys := r.Group("/api/keys", middleware.OwnerAuthMiddleware())
	{
		keys.GET("", keysHandler.HandleList)
		keys.POST("", keysHandler.HandleCreate)
		keys.GET("/stream", streamHandler.HandleStream)
		keys.GET("/:id", keysHandler.HandleGet)
		keys.PATCH("/:id", keysHandler.HandleUpdate)
		keys.DELETE("/:id", keysHandler.HandleDelete)
		keys.POST("/:id/toggle", keysHandler.HandleToggle)
		keys.POST("/:id/reset", keysHandler.HandleReset)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return s
}

func (s *Server) limiter(cfg middleware.RateLimitConfig) *middleware.RateLimiter {
	rl := middleware.NewRateLimiter(cfg)
	s.limiters = append(s.limiters, rl)
	return rl
}

// Handler exposes the router for http.Server and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops the limiter cleanup goroutines
func (s *Server) Close() {
	for _, rl := range s.limiters {
		rl.Stop()
	}
}

func corsConfig(origins []string) cors.Config {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if len(allowed) == 0 {
				return devOrigins[origin]
			}
			return allowed[origin]
		},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}
