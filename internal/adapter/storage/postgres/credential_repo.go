package postgres

import (
	"context"
	"fmt"

	"refund-autopilot/internal/core/domain"

	"github.com/google/uuid"
)

// CredentialRepo implements ports.CredentialRepository. Values are stored
// already encrypted; this layer never sees plaintext secrets.
type CredentialRepo struct {
	pool Pool
}

// NewCredentialRepo creates a new CredentialRepo.
func NewCredentialRepo(pool Pool) *CredentialRepo {
	return &CredentialRepo{pool: pool}
}

// Upsert inserts or replaces one credential for a tenant.
func (r *CredentialRepo) Upsert(ctx context.Context, rec *domain.CredentialRecord) error {
	query := `INSERT INTO tenant_credentials (tenant_id, key, value_enc, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, key)
		DO UPDATE SET value_enc = EXCLUDED.value_enc, updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query, rec.TenantID, rec.Key, rec.ValueEnc, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// GetAll returns every stored credential for a tenant as key -> encrypted value.
func (r *CredentialRepo) GetAll(ctx context.Context, tenantID uuid.UUID) (map[string]string, error) {
	query := `SELECT key, value_enc FROM tenant_credentials WHERE tenant_id = $1`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	defer rows.Close()

	creds := make(map[string]string)
	for rows.Next() {
		var key, valueEnc string
		if err := rows.Scan(&key, &valueEnc); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds[key] = valueEnc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credentials: %w", err)
	}
	return creds, nil
}
