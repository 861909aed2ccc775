package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"refund-autopilot/internal/core/domain"
	"refund-autopilot/internal/core/ports"

	"github.com/google/uuid"
)

// --- In-Memory Refund Repo ---

type inMemoryRefundRepo struct {
	mu      sync.Mutex
	refunds map[uuid.UUID]*domain.RefundRequest
}

func newInMemoryRefundRepo() *inMemoryRefundRepo {
	return &inMemoryRefundRepo{refunds: make(map[uuid.UUID]*domain.RefundRequest)}
}

func (r *inMemoryRefundRepo) Create(ctx context.Context, req *domain.RefundRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !domain.ValidCreateStatus(req.Status) {
		return fmt.Errorf("invalid create status %s", req.Status)
	}
	cp := *req
	r.refunds[req.ID] = &cp
	return nil
}

func (r *inMemoryRefundRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.RefundRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.refunds[id]
	if !ok || req.TenantID != tenantID {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

// AdvanceStatus is a true compare-and-swap under the repo mutex, mirroring the
// single-statement conditional UPDATE of the SQL implementation.
func (r *inMemoryRefundRepo) AdvanceStatus(ctx context.Context, id uuid.UUID, expected, next domain.RefundStatus, viaOverride bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !domain.CanTransition(expected, next, viaOverride) {
		return false, fmt.Errorf("illegal transition %s -> %s", expected, next)
	}
	req, ok := r.refunds[id]
	if !ok || req.Status != expected {
		return false, nil
	}
	req.Status = next
	if viaOverride {
		req.ManualOverride = true
	}
	return true, nil
}

func (r *inMemoryRefundRepo) List(ctx context.Context, params ports.RefundListParams) ([]domain.RefundRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.RefundRequest
	for _, req := range r.refunds {
		if req.TenantID != params.TenantID {
			continue
		}
		if params.Status != nil && req.Status != *params.Status {
			continue
		}
		result = append(result, *req)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.RefundRequest{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// --- In-Memory Audit Repo ---

type inMemoryAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func newInMemoryAuditRepo() *inMemoryAuditRepo {
	return &inMemoryAuditRepo{}
}

func (r *inMemoryAuditRepo) Append(ctx context.Context, e *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *inMemoryAuditRepo) ListByRefund(ctx context.Context, tenantID, refundID uuid.UUID) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.AuditEntry
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.RefundID == refundID {
			result = append(result, e)
		}
	}
	return result, nil
}

// actions returns the ordered action names recorded for a refund.
func (r *inMemoryAuditRepo) actions(refundID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []string
	for _, e := range r.entries {
		if e.RefundID == refundID {
			result = append(result, string(e.Action))
		}
	}
	return result
}

// --- In-Memory Tenant Repo ---

type inMemoryTenantRepo struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*domain.Tenant
}

func newInMemoryTenantRepo() *inMemoryTenantRepo {
	return &inMemoryTenantRepo{tenants: make(map[uuid.UUID]*domain.Tenant)}
}

func (r *inMemoryTenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tenants {
		if existing.Username == t.Username {
			return fmt.Errorf("username already exists")
		}
	}
	cp := *t
	r.tenants[t.ID] = &cp
	return nil
}

func (r *inMemoryTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTenantRepo) GetByUsername(ctx context.Context, username string) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tenants {
		if t.Username == username {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

// --- In-Memory Credential Repo ---

type credKey struct {
	tenantID uuid.UUID
	key      string
}

type inMemoryCredentialRepo struct {
	mu      sync.RWMutex
	records map[credKey]string
}

func newInMemoryCredentialRepo() *inMemoryCredentialRepo {
	return &inMemoryCredentialRepo{records: make(map[credKey]string)}
}

func (r *inMemoryCredentialRepo) Upsert(ctx context.Context, rec *domain.CredentialRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[credKey{rec.TenantID, rec.Key}] = rec.ValueEnc
	return nil
}

func (r *inMemoryCredentialRepo) GetAll(ctx context.Context, tenantID uuid.UUID) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]string)
	for k, v := range r.records {
		if k.tenantID == tenantID {
			result[k.key] = v
		}
	}
	return result, nil
}
