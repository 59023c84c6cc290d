package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"syncly-backend/internal/domain"
	"syncly-backend/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints /auth.
type AuthHandler struct {
	logger  *zap.Logger
	authSvc *service.AuthService
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		authSvc: authSvc,
	}
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	profile, err := h.authSvc.Login(c.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, service.ErrTokenInvalid) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    profile,
	})
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email          string `json:"email" binding:"required,email"`
		Password       string `json:"password" binding:"required"`
		Name           string `json:"name"`
		OrganizationID string `json:"organizationId"`
		Role           string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	out, err := h.authSvc.Register(c.Request.Context(), service.RegisterInput{
		Email:          req.Email,
		Password:       req.Password,
		Name:           req.Name,
		OrganizationID: req.OrganizationID,
		Role:           req.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailExists):
			c.JSON(http.StatusConflict, gin.H{"error": "user with this email already exists"})
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrInvalidRole):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration data"})
		default:
			h.logger.Error("registration failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, out)
}

// GetProfile maneja GET /auth/profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, ok := GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	profile, err := h.authSvc.GetProfile(c.Request.Context(), user.UID)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		h.logger.Error("get profile failed", zap.Error(err), zap.String("uid", user.UID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateProfile maneja PUT /auth/profile. Email y rol no se aceptan en
// el body; solo /auth/roles puede cambiar el rol.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	user, ok := GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Name        *string        `json:"name"`
		AvatarURL   *string        `json:"avatar_url"`
		Preferences map[string]any `json:"preferences"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	profile, err := h.authSvc.UpdateProfile(c.Request.Context(), user.UID, domain.ProfilePatch{
		Name:        req.Name,
		AvatarURL:   req.AvatarURL,
		Preferences: req.Preferences,
	})
	if err != nil {
		h.logger.Error("update profile failed", zap.Error(err), zap.String("uid", user.UID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile update failed"})
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdatePreferences maneja PUT /auth/preferences. Reemplaza el mapa
// completo, no hace merge.
func (h *AuthHandler) UpdatePreferences(c *gin.Context) {
	user, ok := GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Preferences map[string]any `json:"preferences" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "preferences are required"})
		return
	}

	profile, err := h.authSvc.UpdatePreferences(c.Request.Context(), user.UID, req.Preferences)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		h.logger.Error("update preferences failed", zap.Error(err), zap.String("uid", user.UID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, profile)
}

// DeleteAccount maneja DELETE /auth/account.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	user, ok := GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.authSvc.DeleteAccount(c.Request.Context(), user.UID); err != nil {
		h.logger.Error("account deletion failed", zap.Error(err), zap.String("uid", user.UID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "account deletion failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account successfully deleted"})
}

// ListReconciliations maneja GET /auth/reconciliations (solo admin).
func (h *AuthHandler) ListReconciliations(c *gin.Context) {
	records, err := h.authSvc.PendingReconciliations(c.Request.Context())
	if err != nil {
		h.logger.Error("list reconciliations failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if records == nil {
		records = []domain.ReconciliationRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"reconciliations": records})
}

// UpdateRole maneja PUT /auth/roles (solo admin).
func (h *AuthHandler) UpdateRole(c *gin.Context) {
	var req struct {
		UserID string `json:"userId" binding:"required"`
		Role   string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user ID and role are required"})
		return
	}

	profile, err := h.authSvc.UpdateRole(c.Request.Context(), req.UserID, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRole):
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid role"})
		case errors.Is(err, service.ErrProfileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		default:
			h.logger.Error("role update failed", zap.Error(err), zap.String("target_uid", req.UserID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user role"})
		}
		return
	}

	c.JSON(http.StatusOK, profile)
}
