package handler

import (
	"refund-autopilot/internal/adapter/http/dto"
	"refund-autopilot/internal/core/ports"
	"refund-autopilot/pkg/apperror"
	"refund-autopilot/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuthHandler exposes tenant registration and operator login.
type AuthHandler struct {
	auth ports.AuthService
	log  zerolog.Logger
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(auth ports.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log.With().Str("handler", "auth").Logger()}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("username (3-64 chars), password (8-128 chars) and tenant_name are required"))
		return
	}

	tenant, err := h.auth.Register(c.Request.Context(), ports.RegisterRequest{
		Username:   req.Username,
		Password:   req.Password,
		TenantName: req.TenantName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.RegisterResponse{
		TenantID:   tenant.ID.String(),
		Username:   tenant.Username,
		TenantName: tenant.TenantName,
	})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("username and password are required"))
		return
	}

	token, expiresAt, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LoginResponse{Token: token, ExpiresAt: expiresAt})
}
