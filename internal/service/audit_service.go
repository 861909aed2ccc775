package service

import (
	"context"
	"sync/atomic"

	"refund-autopilot/internal/core/domain"
	"refund-autopilot/internal/core/ports"

	"github.com/rs/zerolog"
)

// AuditServiceImpl writes audit entries to the append-only trail. A failed
// append never propagates to the caller: the entry is dropped, logged, and
// counted, and the pipeline step that triggered it proceeds unaffected.
type AuditServiceImpl struct {
	repo    ports.AuditRepository
	log     zerolog.Logger
	dropped atomic.Int64
}

// NewAuditService creates an audit service backed by the given repository.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditServiceImpl {
	return &AuditServiceImpl{
		repo: repo,
		log:  log.With().Str("component", "audit").Logger(),
	}
}

// Record appends one entry, swallowing persistence errors.
func (s *AuditServiceImpl) Record(ctx context.Context, e *domain.AuditEntry) {
	if err := s.repo.Append(ctx, e); err != nil {
		n := s.dropped.Add(1)
		s.log.Error().
			Err(err).
			Str("refund_id", e.RefundID.String()).
			Str("action", string(e.Action)).
			Int64("dropped_total", n).
			Msg("audit append failed, entry dropped")
	}
}

// Dropped returns the number of entries lost since startup. Exposed on the
// health endpoint so operators notice a silently failing trail.
func (s *AuditServiceImpl) Dropped() int64 {
	return s.dropped.Load()
}
