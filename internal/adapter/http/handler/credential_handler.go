package handler

import (
	"refund-autopilot/internal/adapter/http/dto"
	"refund-autopilot/internal/adapter/http/middleware"
	"refund-autopilot/internal/core/ports"
	"refund-autopilot/pkg/apperror"
	"refund-autopilot/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CredentialHandler manages per-tenant provider secrets.
type CredentialHandler struct {
	creds ports.CredentialAdminService
	log   zerolog.Logger
}

// NewCredentialHandler creates a credential handler.
func NewCredentialHandler(creds ports.CredentialAdminService, log zerolog.Logger) *CredentialHandler {
	return &CredentialHandler{creds: creds, log: log.With().Str("handler", "credential").Logger()}
}

// Store handles PUT /api/v1/credentials. Values are write-only; there is no
// endpoint that returns a stored secret.
func (h *CredentialHandler) Store(c *gin.Context) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.StoreCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("key and value are required"))
		return
	}

	if err := h.creds.Store(c.Request.Context(), tenantID, req.Key, req.Value); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"key": req.Key, "stored": true})
}

// Capabilities handles GET /api/v1/credentials/capabilities.
func (h *CredentialHandler) Capabilities(c *gin.Context) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	caps, err := h.creds.Capabilities(c.Request.Context(), tenantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	platforms := make(map[string]bool, len(caps))
	for p, enabled := range caps {
		platforms[string(p)] = enabled
	}

	response.OK(c, dto.CapabilitiesResponse{Platforms: platforms})
}
