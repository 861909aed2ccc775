package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"refund-autopilot/internal/core/domain"
	"refund-autopilot/internal/core/ports"
	"refund-autopilot/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// defaultFraudScore is applied when the scorer is unavailable. A neutral 0.5
// never auto-rejects but keeps large amounts out of auto-approval.
const defaultFraudScore = 0.5

// RefundServiceImpl is the refund decision & dispatch pipeline:
// extraction -> fraud scoring -> decision -> ledger create -> dispatch,
// with an audit entry per transition and a best-effort notification at the end.
type RefundServiceImpl struct {
	refunds    ports.RefundRepository
	audits     ports.AuditRepository
	audit      ports.AuditService
	extractor  ports.Extractor
	scorer     ports.FraudScorer
	creds      ports.CredentialResolver
	dispatcher *Dispatcher
	engine     *DecisionEngine
	notifier   ports.NotificationSink

	providerTimeout time.Duration
	credTimeout     time.Duration
	defaultCurrency string
	log             zerolog.Logger
}

// RefundServiceDeps bundles the pipeline's collaborators.
type RefundServiceDeps struct {
	Refunds    ports.RefundRepository
	Audits     ports.AuditRepository
	Audit      ports.AuditService
	Extractor  ports.Extractor
	Scorer     ports.FraudScorer
	Creds      ports.CredentialResolver
	Dispatcher *Dispatcher
	Engine     *DecisionEngine

	ProviderTimeout time.Duration
	CredTimeout     time.Duration
	DefaultCurrency string
}

// NewRefundService wires the pipeline together.
func NewRefundService(deps RefundServiceDeps, notifier ports.NotificationSink, log zerolog.Logger) *RefundServiceImpl {
	return &RefundServiceImpl{
		refunds:         deps.Refunds,
		audits:          deps.Audits,
		audit:           deps.Audit,
		extractor:       deps.Extractor,
		scorer:          deps.Scorer,
		creds:           deps.Creds,
		dispatcher:      deps.Dispatcher,
		engine:          deps.Engine,
		notifier:        notifier,
		providerTimeout: deps.ProviderTimeout,
		credTimeout:     deps.CredTimeout,
		defaultCurrency: deps.DefaultCurrency,
		log:             log.With().Str("component", "refund_service").Logger(),
	}
}

// Submit runs the full pipeline for one raw customer message.
//
// Extraction failure stops the run with no record created. Scorer failure
// does not: a neutral default score is applied and audited. Fraud rejection
// and a missing payment route are reported in the result, not as errors.
func (s *RefundServiceImpl) Submit(ctx context.Context, in ports.SubmitInput) (*ports.SubmitResult, error) {
	if strings.TrimSpace(in.RawMessage) == "" {
		return nil, apperror.Validation("message is required")
	}

	fields, err := s.extractor.Extract(ctx, in.RawMessage)
	if err != nil {
		return nil, apperror.ErrExtractionFailed(err)
	}
	if fields.OrderID == "" || fields.AmountCents <= 0 {
		return nil, apperror.ErrExtractionFailed(errors.New("order id or amount missing from message"))
	}

	score, scoreDefaulted := s.fraudScore(ctx, in.RawMessage)
	status := s.engine.Decide(fields.AmountCents, score, in.ManualOverride)

	cctx, cancel := context.WithTimeout(ctx, s.credTimeout)
	creds, err := s.creds.Resolve(cctx, in.TenantID)
	cancel()
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	// Route before creating the record so the platform and payment reference
	// are stored with it; an override re-dispatch reuses them later.
	route, routeErr := s.dispatcher.SelectRoute(in.PaymentHint, fields.OrderID, creds)
	var appErr *apperror.AppError
	if errors.As(routeErr, &appErr) {
		return nil, appErr
	}

	actor := in.Actor
	if actor == "" {
		actor = domain.SystemActor
	}

	refund := &domain.RefundRequest{
		ID:             uuid.New(),
		TenantID:       in.TenantID,
		OrderID:        fields.OrderID,
		AmountCents:    fields.AmountCents,
		Currency:       s.defaultCurrency,
		CustomerName:   fields.CustomerName,
		CustomerEmail:  fields.CustomerEmail,
		Reason:         fields.Reason,
		FraudScore:     score,
		Status:         status,
		ManualOverride: in.ManualOverride,
		CreatedAt:      time.Now().UTC(),
	}
	if route != nil {
		p, ref := route.Platform, route.PaymentRef
		refund.Platform = &p
		refund.PaymentRef = &ref
	}

	if err := s.refunds.Create(ctx, refund); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.record(ctx, refund, domain.AuditActionCreated, actor, map[string]any{
		"status":       string(status),
		"amount_cents": fields.AmountCents,
		"fraud_score":  score,
	})
	if scoreDefaulted {
		s.record(ctx, refund, domain.AuditActionFraudScoreDefaulted, domain.SystemActor, map[string]any{
			"default_score": defaultFraudScore,
		})
	}

	result := &ports.SubmitResult{
		RefundID:   refund.ID,
		Status:     status,
		FraudScore: score,
	}

	switch status {
	case domain.RefundStatusRejectedFraud:
		s.record(ctx, refund, domain.AuditActionFraudRejected, domain.SystemActor, map[string]any{
			"fraud_score": score,
		})

	case domain.RefundStatusPendingReview:
		// Parked for an operator decision; nothing executes.

	case domain.RefundStatusApproved:
		s.record(ctx, refund, domain.AuditActionApproved, actor, nil)
		if route == nil {
			result.Route = RouteNone
			s.record(ctx, refund, domain.AuditActionNoPaymentRoute, domain.SystemActor, nil)
		} else {
			result.Route = string(route.Platform)
			final, err := s.execute(ctx, refund, *route, creds, false)
			if err != nil {
				return nil, err
			}
			result.Status = final
		}
	}

	s.notify(ctx, refund, result)
	return result, nil
}

// Override applies an operator decision to an existing refund. The override
// itself is audited even when the requested transition is rejected. Moving a
// refund to approved from pending_review or failed triggers a dispatch using
// the route stored at submit time; extraction and scoring never re-run.
func (s *RefundServiceImpl) Override(ctx context.Context, in ports.OverrideInput) (*ports.OverrideResult, error) {
	refund, err := s.refunds.GetByID(ctx, in.TenantID, in.RefundID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if refund == nil {
		return nil, apperror.ErrNotFound("refund")
	}

	// The attempt goes on the trail regardless of outcome.
	s.record(ctx, refund, domain.AuditActionManualOverride, in.Actor, map[string]any{
		"from": string(refund.Status),
		"to":   string(in.NewStatus),
	})

	if !domain.CanTransition(refund.Status, in.NewStatus, true) {
		return nil, apperror.ErrInvalidTransition(string(refund.Status), string(in.NewStatus))
	}

	ok, err := s.refunds.AdvanceStatus(ctx, refund.ID, refund.Status, in.NewStatus, true)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if !ok {
		return nil, s.staleState(ctx, in.TenantID, refund.ID, refund.Status)
	}

	prior := refund.Status
	refund.Status = in.NewStatus
	refund.ManualOverride = true

	result := &ports.OverrideResult{
		RefundID: refund.ID,
		Status:   in.NewStatus,
	}

	if in.NewStatus == domain.RefundStatusApproved &&
		(prior == domain.RefundStatusPendingReview || prior == domain.RefundStatusFailed) {

		cctx, cancel := context.WithTimeout(ctx, s.credTimeout)
		creds, err := s.creds.Resolve(cctx, in.TenantID)
		cancel()
		if err != nil {
			return nil, apperror.InternalError(err)
		}

		route := s.storedRoute(refund)
		if route == nil {
			r, routeErr := s.dispatcher.SelectRoute(nil, refund.OrderID, creds)
			if routeErr == nil {
				route = r
			}
		}
		if route == nil {
			result.Route = RouteNone
			s.record(ctx, refund, domain.AuditActionNoPaymentRoute, domain.SystemActor, nil)
		} else {
			result.Route = string(route.Platform)
			final, err := s.execute(ctx, refund, *route, creds, false)
			if err != nil {
				return nil, err
			}
			result.Status = final
		}
	}

	s.notifyOverride(ctx, refund, result)
	return result, nil
}

// Get returns one refund scoped to a tenant.
func (s *RefundServiceImpl) Get(ctx context.Context, tenantID, refundID uuid.UUID) (*domain.RefundRequest, error) {
	refund, err := s.refunds.GetByID(ctx, tenantID, refundID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if refund == nil {
		return nil, apperror.ErrNotFound("refund")
	}
	return refund, nil
}

// List returns a page of a tenant's refunds, optionally filtered by status.
func (s *RefundServiceImpl) List(ctx context.Context, params ports.RefundListParams) ([]domain.RefundRequest, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	items, total, err := s.refunds.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrDatabaseError(err)
	}
	return items, total, nil
}

// AuditTrail returns the ordered audit entries for one refund.
func (s *RefundServiceImpl) AuditTrail(ctx context.Context, tenantID, refundID uuid.UUID) ([]domain.AuditEntry, error) {
	refund, err := s.refunds.GetByID(ctx, tenantID, refundID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if refund == nil {
		return nil, apperror.ErrNotFound("refund")
	}
	entries, err := s.audits.ListByRefund(ctx, tenantID, refundID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return entries, nil
}

// execute moves a refund through executing to a terminal outcome. The CAS on
// the executing transition is the at-most-once guard: whichever caller claims
// it performs the single backend attempt, every other concurrent caller gets
// a stale-state conflict.
func (s *RefundServiceImpl) execute(ctx context.Context, refund *domain.RefundRequest, route Route, creds *domain.Credentials, viaOverride bool) (domain.RefundStatus, error) {
	from := refund.Status

	ok, err := s.refunds.AdvanceStatus(ctx, refund.ID, from, domain.RefundStatusExecuting, viaOverride)
	if err != nil {
		return "", apperror.ErrDatabaseError(err)
	}
	if !ok {
		return "", s.staleState(ctx, refund.TenantID, refund.ID, from)
	}
	refund.Status = domain.RefundStatusExecuting

	s.record(ctx, refund, domain.AuditActionExecutionStarted, domain.SystemActor, map[string]any{
		"platform": string(route.Platform),
	})

	pctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	receipt, execErr := s.dispatcher.Execute(pctx, route, creds, refund.AmountCents, refund.Currency)
	cancel()

	if execErr != nil {
		if _, err := s.refunds.AdvanceStatus(ctx, refund.ID, domain.RefundStatusExecuting, domain.RefundStatusFailed, false); err != nil {
			s.log.Error().Err(err).
				Str("refund_id", refund.ID.String()).
				Msg("failed to mark refund failed after backend error")
			return "", apperror.ErrDatabaseError(err)
		}
		refund.Status = domain.RefundStatusFailed
		s.record(ctx, refund, domain.AuditActionExecutionFailed, domain.SystemActor, map[string]any{
			"platform": string(route.Platform),
			"error":    execErr.Error(),
		})
		return domain.RefundStatusFailed, nil
	}

	if _, err := s.refunds.AdvanceStatus(ctx, refund.ID, domain.RefundStatusExecuting, domain.RefundStatusCompleted, false); err != nil {
		return "", apperror.ErrDatabaseError(err)
	}
	refund.Status = domain.RefundStatusCompleted
	s.record(ctx, refund, domain.AuditActionExecutionSucceeded, domain.SystemActor, map[string]any{
		"platform":     string(route.Platform),
		"provider_ref": receipt.ProviderRef,
	})
	return domain.RefundStatusCompleted, nil
}

// fraudScore returns the scorer's result clamped to [0, 1], or the neutral
// default (with defaulted=true) when the scorer is unavailable.
func (s *RefundServiceImpl) fraudScore(ctx context.Context, rawMessage string) (score float64, defaulted bool) {
	score, err := s.scorer.Score(ctx, rawMessage)
	if err != nil {
		s.log.Warn().Err(err).Msg("fraud scorer unavailable, applying neutral default")
		return defaultFraudScore, true
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, false
}

// storedRoute rebuilds the dispatch route captured at submit time, if any.
func (s *RefundServiceImpl) storedRoute(refund *domain.RefundRequest) *Route {
	if refund.Platform == nil || refund.PaymentRef == nil {
		return nil
	}
	return &Route{Platform: *refund.Platform, PaymentRef: *refund.PaymentRef}
}

// staleState re-reads the row so the conflict error names the status actually
// found. The read is best-effort.
func (s *RefundServiceImpl) staleState(ctx context.Context, tenantID, refundID uuid.UUID, expected domain.RefundStatus) *apperror.AppError {
	actual := "unknown"
	if cur, err := s.refunds.GetByID(ctx, tenantID, refundID); err == nil && cur != nil {
		actual = string(cur.Status)
	}
	return apperror.ErrStaleState(string(expected), actual)
}

func (s *RefundServiceImpl) record(ctx context.Context, refund *domain.RefundRequest, action domain.AuditAction, actor string, details map[string]any) {
	var detailJSON string
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			detailJSON = string(b)
		}
	}
	s.audit.Record(ctx, &domain.AuditEntry{
		ID:        uuid.New(),
		RefundID:  refund.ID,
		TenantID:  refund.TenantID,
		Action:    action,
		Actor:     actor,
		Details:   detailJSON,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *RefundServiceImpl) notify(ctx context.Context, refund *domain.RefundRequest, result *ports.SubmitResult) {
	s.notifier.Notify(ctx, ports.Notification{
		RefundID:    refund.ID,
		TenantID:    refund.TenantID,
		OrderID:     refund.OrderID,
		AmountCents: refund.AmountCents,
		Currency:    refund.Currency,
		Status:      result.Status,
		FraudScore:  refund.FraudScore,
		Route:       result.Route,
	})
}

func (s *RefundServiceImpl) notifyOverride(ctx context.Context, refund *domain.RefundRequest, result *ports.OverrideResult) {
	s.notifier.Notify(ctx, ports.Notification{
		RefundID:    refund.ID,
		TenantID:    refund.TenantID,
		OrderID:     refund.OrderID,
		AmountCents: refund.AmountCents,
		Currency:    refund.Currency,
		Status:      result.Status,
		FraudScore:  refund.FraudScore,
		Route:       result.Route,
	})
}
