package domain

import (
	"time"

	"github.com/google/uuid"
)

// Platform identifies a payment platform capable of executing a refund.
type Platform string

const (
	PlatformStripe  Platform = "stripe"
	PlatformPayPal  Platform = "paypal"
	PlatformShopify Platform = "shopify"
)

// RefundStatus represents the lifecycle state of a refund request.
type RefundStatus string

const (
	RefundStatusPendingReview RefundStatus = "pending_review"
	RefundStatusApproved      RefundStatus = "approved"
	RefundStatusRejectedFraud RefundStatus = "rejected_fraud"
	RefundStatusExecuting     RefundStatus = "executing"
	RefundStatusCompleted     RefundStatus = "completed"
	RefundStatusFailed        RefundStatus = "failed"
)

// RefundRequest is one customer-initiated refund ask. Amounts are stored in
// the smallest currency unit (cents). Records are never deleted; refunds are
// a compliance record.
type RefundRequest struct {
	ID             uuid.UUID    `json:"id"`
	TenantID       uuid.UUID    `json:"tenant_id"`
	OrderID        string       `json:"order_id"`
	AmountCents    int64        `json:"amount_cents"`
	Currency       string       `json:"currency"`
	CustomerName   *string      `json:"customer_name,omitempty"`
	CustomerEmail  *string      `json:"customer_email,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	FraudScore     float64      `json:"fraud_score"`
	Status         RefundStatus `json:"status"`
	Platform       *Platform    `json:"platform,omitempty"`
	PaymentRef     *string      `json:"-"` // provider payment reference, used only by the dispatcher
	ManualOverride bool         `json:"manual_override"`
	CreatedAt      time.Time    `json:"created_at"`
	ProcessedAt    *time.Time   `json:"processed_at,omitempty"`
}

// IsTerminal returns true if the refund reached a final execution outcome.
func (r *RefundRequest) IsTerminal() bool {
	return r.Status == RefundStatusCompleted ||
		r.Status == RefundStatusFailed ||
		r.Status == RefundStatusRejectedFraud
}

// transition is one edge in the refund status machine.
type transition struct {
	from RefundStatus
	to   RefundStatus
}

// legalTransitions whitelists every permitted status change. The bool marks
// edges that require an explicit operator override.
var legalTransitions = map[transition]bool{
	{RefundStatusApproved, RefundStatusExecuting}:          false,
	{RefundStatusExecuting, RefundStatusCompleted}:         false,
	{RefundStatusExecuting, RefundStatusFailed}:            false,
	{RefundStatusPendingReview, RefundStatusApproved}:      true,
	{RefundStatusPendingReview, RefundStatusRejectedFraud}: true,
	{RefundStatusFailed, RefundStatusApproved}:             true,
	{RefundStatusFailed, RefundStatusExecuting}:            true,
}

// CanTransition reports whether moving from -> to is legal. Edges marked as
// override-only are permitted only when viaOverride is set. Everything not in
// the whitelist is rejected, which is the primary guard against
// double-execution of a refund.
func CanTransition(from, to RefundStatus, viaOverride bool) bool {
	needsOverride, ok := legalTransitions[transition{from, to}]
	if !ok {
		return false
	}
	return !needsOverride || viaOverride
}

// ValidCreateStatus reports whether a status is acceptable for a freshly
// created record. Execution states can only ever be reached via AdvanceStatus.
func ValidCreateStatus(s RefundStatus) bool {
	return s == RefundStatusPendingReview ||
		s == RefundStatusApproved ||
		s == RefundStatusRejectedFraud
}
