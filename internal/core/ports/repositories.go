package ports

import (
	"context"

	"refund-autopilot/internal/core/domain"

	"github.com/google/uuid"
)

// RefundRepository defines persistence operations for refund requests.
type RefundRepository interface {
	// Create inserts a new refund record. Only decision-stage statuses
	// (pending_review, approved, rejected_fraud) are accepted.
	Create(ctx context.Context, r *domain.RefundRequest) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.RefundRequest, error)
	// AdvanceStatus performs an atomic compare-and-swap on
	// (id, expected) -> next. It returns false when the row is not in the
	// expected status, without mutating anything. When viaOverride is set the
	// row's manual_override flag is raised alongside the transition.
	// Terminal outcomes (completed, failed) also stamp processed_at.
	AdvanceStatus(ctx context.Context, id uuid.UUID, expected, next domain.RefundStatus, viaOverride bool) (bool, error)
	List(ctx context.Context, params RefundListParams) ([]domain.RefundRequest, int64, error)
}

// RefundListParams holds filter + pagination for listing refunds.
type RefundListParams struct {
	TenantID uuid.UUID
	Status   *domain.RefundStatus
	Page     int
	PageSize int
}

// AuditRepository defines the append-only persistence for audit entries.
type AuditRepository interface {
	Append(ctx context.Context, e *domain.AuditEntry) error
	ListByRefund(ctx context.Context, tenantID, refundID uuid.UUID) ([]domain.AuditEntry, error)
}

// TenantRepository defines persistence operations for tenant accounts.
type TenantRepository interface {
	Create(ctx context.Context, t *domain.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	GetByUsername(ctx context.Context, username string) (*domain.Tenant, error)
}

// CredentialRepository stores per-tenant provider secrets, encrypted at rest.
type CredentialRepository interface {
	Upsert(ctx context.Context, rec *domain.CredentialRecord) error
	// GetAll returns every stored credential for a tenant as key -> encrypted value.
	GetAll(ctx context.Context, tenantID uuid.UUID) (map[string]string, error)
}
