package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"refund-autopilot/internal/core/domain"
	"refund-autopilot/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const refundColumns = `id, tenant_id, order_id, amount_cents, currency, customer_name, customer_email,
	reason, fraud_score, status, platform, payment_ref, manual_override, created_at, processed_at`

// RefundRepo implements ports.RefundRepository.
type RefundRepo struct {
	pool Pool
}

// NewRefundRepo creates a new RefundRepo.
func NewRefundRepo(pool Pool) *RefundRepo {
	return &RefundRepo{pool: pool}
}

// Create inserts a new refund record. Only decision-stage statuses are
// accepted; execution states are reachable exclusively through AdvanceStatus.
func (r *RefundRepo) Create(ctx context.Context, refund *domain.RefundRequest) error {
	if !domain.ValidCreateStatus(refund.Status) {
		return fmt.Errorf("status %q is not a valid create status", refund.Status)
	}

	query := `INSERT INTO refund_requests (` + refundColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		refund.ID, refund.TenantID, refund.OrderID, refund.AmountCents, refund.Currency,
		refund.CustomerName, refund.CustomerEmail, refund.Reason, refund.FraudScore,
		refund.Status, refund.Platform, refund.PaymentRef, refund.ManualOverride,
		refund.CreatedAt, refund.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

// GetByID fetches one refund scoped to a tenant. Returns (nil, nil) when no
// row exists.
func (r *RefundRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id = $1 AND tenant_id = $2`
	return r.scanRefund(r.pool.QueryRow(ctx, query, id, tenantID))
}

// AdvanceStatus performs the compare-and-swap (id, expected) -> next in a
// single statement. Zero rows affected means another actor moved the row
// first; the caller sees false and must re-read. Terminal outcomes stamp
// processed_at, and override transitions raise the manual_override flag.
func (r *RefundRepo) AdvanceStatus(ctx context.Context, id uuid.UUID, expected, next domain.RefundStatus, viaOverride bool) (bool, error) {
	if !domain.CanTransition(expected, next, viaOverride) {
		return false, fmt.Errorf("illegal transition %s -> %s", expected, next)
	}

	query := `UPDATE refund_requests
		SET status = $1,
		    manual_override = (manual_override OR $2),
		    processed_at = CASE WHEN $1 IN ('completed', 'failed', 'rejected_fraud')
		                        THEN now() ELSE processed_at END
		WHERE id = $3 AND status = $4`

	tag, err := r.pool.Exec(ctx, query, next, viaOverride, id, expected)
	if err != nil {
		return false, fmt.Errorf("advance refund status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List fetches a tenant's refunds with optional status filter and pagination,
// newest first.
func (r *RefundRepo) List(ctx context.Context, params ports.RefundListParams) ([]domain.RefundRequest, int64, error) {
	var conditions []string
	var args []any

	conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", len(args)+1))
	args = append(args, params.TenantID)

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *params.Status)
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM refund_requests ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count refunds: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	query := fmt.Sprintf(`SELECT %s FROM refund_requests %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		refundColumns, where, len(args)+1, len(args)+2)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list refunds: %w", err)
	}
	defer rows.Close()

	refunds := make([]domain.RefundRequest, 0, params.PageSize)
	for rows.Next() {
		refund, err := scanRefundRow(rows)
		if err != nil {
			return nil, 0, err
		}
		refunds = append(refunds, *refund)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating refunds: %w", err)
	}
	return refunds, total, nil
}

func (r *RefundRepo) scanRefund(row pgx.Row) (*domain.RefundRequest, error) {
	refund, err := scanRefundRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return refund, nil
}

func scanRefundRow(row pgx.Row) (*domain.RefundRequest, error) {
	var refund domain.RefundRequest
	var platform *string

	err := row.Scan(
		&refund.ID, &refund.TenantID, &refund.OrderID, &refund.AmountCents, &refund.Currency,
		&refund.CustomerName, &refund.CustomerEmail, &refund.Reason, &refund.FraudScore,
		&refund.Status, &platform, &refund.PaymentRef, &refund.ManualOverride,
		&refund.CreatedAt, &refund.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan refund: %w", err)
	}
	if platform != nil {
		p := domain.Platform(*platform)
		refund.Platform = &p
	}
	return &refund, nil
}
