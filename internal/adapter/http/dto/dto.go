package dto

import (
	"time"

	"refund-autopilot/internal/core/domain"
)

// --- Refund pipeline ---

// SubmitRefundRequest is the inbound body for a pipeline run.
type SubmitRefundRequest struct {
	Message         string  `json:"message" binding:"required"`
	Platform        *string `json:"platform,omitempty"`
	PaymentIntentID *string `json:"payment_intent_id,omitempty"`
	SaleID          *string `json:"sale_id,omitempty"`
	ManualOverride  bool    `json:"manual_override"`
}

// SubmitRefundResponse reports the pipeline run outcome.
type SubmitRefundResponse struct {
	RefundID   string  `json:"refund_id"`
	Status     string  `json:"status"`
	FraudScore float64 `json:"fraud_score"`
	Route      string  `json:"route,omitempty"`
}

// OverrideRequest is an operator decision on an existing refund.
type OverrideRequest struct {
	Status string `json:"status" binding:"required"`
}

// OverrideResponse reports the record state after an override.
type OverrideResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
	Route    string `json:"route,omitempty"`
}

// RefundResponse is the API shape of one refund record.
type RefundResponse struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"order_id"`
	AmountCents    int64      `json:"amount_cents"`
	Currency       string     `json:"currency"`
	CustomerName   *string    `json:"customer_name,omitempty"`
	CustomerEmail  *string    `json:"customer_email,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	FraudScore     float64    `json:"fraud_score"`
	Status         string     `json:"status"`
	Platform       *string    `json:"platform,omitempty"`
	ManualOverride bool       `json:"manual_override"`
	CreatedAt      time.Time  `json:"created_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
}

// ToRefundResponse converts a domain record. The payment reference never
// leaves the service.
func ToRefundResponse(r *domain.RefundRequest) RefundResponse {
	resp := RefundResponse{
		ID:             r.ID.String(),
		OrderID:        r.OrderID,
		AmountCents:    r.AmountCents,
		Currency:       r.Currency,
		CustomerName:   r.CustomerName,
		CustomerEmail:  r.CustomerEmail,
		Reason:         r.Reason,
		FraudScore:     r.FraudScore,
		Status:         string(r.Status),
		ManualOverride: r.ManualOverride,
		CreatedAt:      r.CreatedAt,
		ProcessedAt:    r.ProcessedAt,
	}
	if r.Platform != nil {
		p := string(*r.Platform)
		resp.Platform = &p
	}
	return resp
}

// ListRefundsResponse is a page of refunds.
type ListRefundsResponse struct {
	Items    []RefundResponse `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// AuditEntryResponse is the API shape of one audit entry.
type AuditEntryResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToAuditEntryResponse converts a domain audit entry.
func ToAuditEntryResponse(e *domain.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:        e.ID.String(),
		Action:    string(e.Action),
		Actor:     e.Actor,
		Details:   e.Details,
		CreatedAt: e.CreatedAt,
	}
}

// --- Authentication ---

// RegisterRequest is the tenant signup body.
type RegisterRequest struct {
	Username   string `json:"username" binding:"required,min=3,max=64"`
	Password   string `json:"password" binding:"required,min=8,max=128"`
	TenantName string `json:"tenant_name" binding:"required,max=128"`
}

// RegisterResponse reports the created tenant.
type RegisterResponse struct {
	TenantID   string `json:"tenant_id"`
	Username   string `json:"username"`
	TenantName string `json:"tenant_name"`
}

// LoginRequest is the operator login body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// --- Credentials ---

// StoreCredentialRequest upserts one provider secret.
type StoreCredentialRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// CapabilitiesResponse reports which platforms are dispatchable.
type CapabilitiesResponse struct {
	Platforms map[string]bool `json:"platforms"`
}
