package postgres

import (
	"context"
	"errors"
	"fmt"

	"refund-autopilot/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const tenantColumns = `id, username, password_hash, tenant_name, status, created_at, updated_at`

// TenantRepo implements ports.TenantRepository.
type TenantRepo struct {
	pool Pool
}

// NewTenantRepo creates a new TenantRepo.
func NewTenantRepo(pool Pool) *TenantRepo {
	return &TenantRepo{pool: pool}
}

// Create inserts a new tenant.
func (r *TenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	query := `INSERT INTO tenants (` + tenantColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.Username, t.PasswordHash, t.TenantName, t.Status, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// GetByID fetches a tenant by UUID. Returns (nil, nil) when no row exists.
func (r *TenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return r.scanTenant(r.pool.QueryRow(ctx, query, id))
}

// GetByUsername fetches a tenant by username. Returns (nil, nil) when no row
// exists.
func (r *TenantRepo) GetByUsername(ctx context.Context, username string) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE username = $1`
	return r.scanTenant(r.pool.QueryRow(ctx, query, username))
}

func (r *TenantRepo) scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(&t.ID, &t.Username, &t.PasswordHash, &t.TenantName, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	return &t, nil
}
