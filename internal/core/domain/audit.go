package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction is the fixed vocabulary of audited pipeline transitions.
type AuditAction string

const (
	AuditActionCreated             AuditAction = "created"
	AuditActionApproved            AuditAction = "approved"
	AuditActionFraudRejected       AuditAction = "fraud_rejected"
	AuditActionFraudScoreDefaulted AuditAction = "fraud_score_defaulted"
	AuditActionExecutionStarted    AuditAction = "execution_started"
	AuditActionExecutionSucceeded  AuditAction = "execution_succeeded"
	AuditActionExecutionFailed     AuditAction = "execution_failed"
	AuditActionNoPaymentRoute      AuditAction = "no_payment_route"
	AuditActionManualOverride      AuditAction = "manual_override"
)

// SystemActor identifies transitions performed by the pipeline itself rather
// than an operator.
const SystemActor = "system"

// AuditEntry is one immutable row per refund transition. Entries are never
// updated or deleted; the trail is the record of what happened when.
type AuditEntry struct {
	ID        uuid.UUID   `json:"id"`
	RefundID  uuid.UUID   `json:"refund_id"`
	TenantID  uuid.UUID   `json:"tenant_id"`
	Action    AuditAction `json:"action"`
	Actor     string      `json:"actor"`
	Details   string      `json:"details,omitempty"` // JSON string
	CreatedAt time.Time   `json:"created_at"`
}
