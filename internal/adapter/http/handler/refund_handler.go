package handler

import (
	"strconv"

	"refund-autopilot/internal/adapter/http/dto"
	"refund-autopilot/internal/adapter/http/middleware"
	"refund-autopilot/internal/core/domain"
	"refund-autopilot/internal/core/ports"
	"refund-autopilot/pkg/apperror"
	"refund-autopilot/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RefundHandler exposes the refund pipeline over HTTP.
type RefundHandler struct {
	refunds ports.RefundService
	log     zerolog.Logger
}

// NewRefundHandler creates a refund handler.
func NewRefundHandler(refunds ports.RefundService, log zerolog.Logger) *RefundHandler {
	return &RefundHandler{refunds: refunds, log: log.With().Str("handler", "refund").Logger()}
}

// Submit handles POST /api/v1/refunds.
func (h *RefundHandler) Submit(c *gin.Context) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SubmitRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("message is required"))
		return
	}

	hint, err := paymentHint(req)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.refunds.Submit(c.Request.Context(), ports.SubmitInput{
		TenantID:       tenantID,
		RawMessage:     req.Message,
		PaymentHint:    hint,
		ManualOverride: req.ManualOverride,
		Actor:          middleware.Username(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.SubmitRefundResponse{
		RefundID:   result.RefundID.String(),
		Status:     string(result.Status),
		FraudScore: result.FraudScore,
		Route:      result.Route,
	})
}

// Override handles POST /api/v1/refunds/:id/override.
func (h *RefundHandler) Override(c *gin.Context) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	refundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid refund id"))
		return
	}

	var req dto.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("status is required"))
		return
	}

	newStatus, perr := parseStatus(req.Status)
	if perr != nil {
		response.Error(c, perr)
		return
	}

	result, err := h.refunds.Override(c.Request.Context(), ports.OverrideInput{
		TenantID:  tenantID,
		RefundID:  refundID,
		NewStatus: newStatus,
		Actor:     middleware.Username(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.OverrideResponse{
		RefundID: result.RefundID.String(),
		Status:   string(result.Status),
		Route:    result.Route,
	})
}

// Get handles GET /api/v1/refunds/:id.
func (h *RefundHandler) Get(c *gin.Context) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	refundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid refund id"))
		return
	}

	refund, err := h.refunds.Get(c.Request.Context(), tenantID, refundID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToRefundResponse(refund))
}

// List handles GET /api/v1/refunds.
func (h *RefundHandler) List(c *gin.Context) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	params := ports.RefundListParams{
		TenantID: tenantID,
		Page:     intQuery(c, "page", 1),
		PageSize: intQuery(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status, perr := parseStatus(raw)
		if perr != nil {
			response.Error(c, perr)
			return
		}
		params.Status = &status
	}

	refunds, total, err := h.refunds.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.RefundResponse, 0, len(refunds))
	for i := range refunds {
		items = append(items, dto.ToRefundResponse(&refunds[i]))
	}

	response.OK(c, dto.ListRefundsResponse{
		Items:    items,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	})
}

// AuditTrail handles GET /api/v1/refunds/:id/audit.
func (h *RefundHandler) AuditTrail(c *gin.Context) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	refundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid refund id"))
		return
	}

	entries, err := h.refunds.AuditTrail(c.Request.Context(), tenantID, refundID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.ToAuditEntryResponse(&entries[i]))
	}

	response.OK(c, items)
}

// paymentHint builds the optional backend selection hint from the request.
func paymentHint(req dto.SubmitRefundRequest) (*ports.PaymentHint, error) {
	if req.Platform == nil && req.PaymentIntentID == nil && req.SaleID == nil {
		return nil, nil
	}

	hint := &ports.PaymentHint{
		PaymentIntentID: req.PaymentIntentID,
		SaleID:          req.SaleID,
	}
	if req.Platform != nil {
		p, err := parsePlatform(*req.Platform)
		if err != nil {
			return nil, err
		}
		hint.Platform = &p
	}
	return hint, nil
}

func parsePlatform(raw string) (domain.Platform, error) {
	switch domain.Platform(raw) {
	case domain.PlatformStripe, domain.PlatformPayPal, domain.PlatformShopify:
		return domain.Platform(raw), nil
	default:
		return "", apperror.Validation("unknown platform: " + raw)
	}
}

func parseStatus(raw string) (domain.RefundStatus, *apperror.AppError) {
	switch domain.RefundStatus(raw) {
	case domain.RefundStatusPendingReview, domain.RefundStatusApproved,
		domain.RefundStatusRejectedFraud, domain.RefundStatusExecuting,
		domain.RefundStatusCompleted, domain.RefundStatusFailed:
		return domain.RefundStatus(raw), nil
	default:
		return "", apperror.Validation("unknown status: " + raw)
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
