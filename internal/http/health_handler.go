package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"syncly-backend/internal/db"
)

// HealthHandler reporta el estado del servicio y sus dependencias.
type HealthHandler struct {
	pool               *pgxpool.Pool
	identityConfigured bool
	redisConfigured    bool
}

func NewHealthHandler(pool *pgxpool.Pool, identityConfigured, redisConfigured bool) *HealthHandler {
	return &HealthHandler{
		pool:               pool,
		identityConfigured: identityConfigured,
		redisConfigured:    redisConfigured,
	}
}

// Health maneja GET /health. La base de datos se verifica con un ping
// real; identity provider y redis se reportan como configurados o no.
func (h *HealthHandler) Health(c *gin.Context) {
	dbOK := false
	if h.pool != nil {
		dbOK = db.Ping(c.Request.Context(), h.pool) == nil
	}

	status := "healthy"
	code := http.StatusOK
	if !dbOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":            status,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"database":          dbOK,
		"identity_provider": h.identityConfigured,
		"redis":             h.redisConfigured,
	})
}
