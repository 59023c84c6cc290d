package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"syncly-backend/internal/domain"
	"syncly-backend/internal/identity"
	"syncly-backend/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	healthH *HealthHandler,
	provider identity.Provider,
	authSvc *service.AuthService,
	limiter service.RateLimiter,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	requireAuth := AuthMiddleware(provider, authSvc)
	rateLimited := RateLimitMiddleware(limiter)

	auth := r.Group("/auth")
	auth.POST("/login", rateLimited, authH.Login)
	auth.POST("/register", rateLimited, authH.Register)
	auth.GET("/profile", requireAuth, authH.GetProfile)
	auth.PUT("/profile", requireAuth, authH.UpdateProfile)
	auth.PUT("/preferences", requireAuth, authH.UpdatePreferences)
	auth.DELETE("/account", requireAuth, authH.DeleteAccount)
	auth.PUT("/roles", requireAuth, RequireRole(domain.RoleAdmin), authH.UpdateRole)
	auth.GET("/reconciliations", requireAuth, RequireRole(domain.RoleAdmin), authH.ListReconciliations)

	r.GET("/health", healthH.Health)

	// Ruta de ejemplo protegida: devuelve el contexto autenticado.
	r.GET("/protected", requireAuth, func(c *gin.Context) {
		user, _ := GetUserContext(c)
		c.JSON(http.StatusOK, gin.H{
			"message": "Access granted",
			"user":    user,
		})
	})

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
