package postgres

import (
	"context"
	"fmt"

	"refund-autopilot/internal/core/domain"

	"github.com/google/uuid"
)

// AuditRepo implements ports.AuditRepository. The table is append-only;
// no update or delete statements exist on purpose.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Append inserts one audit entry.
func (r *AuditRepo) Append(ctx context.Context, e *domain.AuditEntry) error {
	query := `INSERT INTO refund_audit_log (id, refund_id, tenant_id, action, actor, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.RefundID, e.TenantID, e.Action, e.Actor, e.Details, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByRefund fetches the trail for one refund in chronological order.
func (r *AuditRepo) ListByRefund(ctx context.Context, tenantID, refundID uuid.UUID) ([]domain.AuditEntry, error) {
	query := `SELECT id, refund_id, tenant_id, action, actor, details, created_at
		FROM refund_audit_log WHERE tenant_id = $1 AND refund_id = $2 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, tenantID, refundID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.RefundID, &e.TenantID, &e.Action, &e.Actor, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}
