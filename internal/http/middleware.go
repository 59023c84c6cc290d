package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"syncly-backend/internal/domain"
	"syncly-backend/internal/identity"
	"syncly-backend/internal/service"
)

const userContextKey = "user_context"

// AuthMiddleware verifica el bearer token contra el identity provider en
// cada request (sin cache) y adjunta un UserContext tipado con los roles
// leídos del perfil. Cualquier fallo de verificación es 401 genérico.
func AuthMiddleware(provider identity.Provider, authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		decoded, err := provider.VerifyToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(userContextKey, domain.UserContext{
			UID:   decoded.UID,
			Email: decoded.Email,
			Name:  decoded.Name,
			Roles: authSvc.RolesFor(c.Request.Context(), decoded.UID),
		})
		c.Next()
	}
}

// GetUserContext obtiene el UserContext adjuntado por AuthMiddleware.
func GetUserContext(c *gin.Context) (domain.UserContext, bool) {
	val, ok := c.Get(userContextKey)
	if !ok {
		return domain.UserContext{}, false
	}
	user, ok := val.(domain.UserContext)
	return user, ok
}

// RequireRole exige el rol literal; no hay jerarquía entre roles.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUserContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		if !user.HasAnyRole(role) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":         "insufficient permissions",
				"required_role": role,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAnyRole acepta cualquiera de los roles listados, por pertenencia
// literal.
func RequireAnyRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUserContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		if !user.HasAnyRole(roles...) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":          "insufficient permissions",
				"required_roles": roles,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware corta con 429 cuando el limiter agota la ventana
// para la IP del cliente. Con limiter nil deja pasar todo.
func RateLimitMiddleware(limiter service.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
