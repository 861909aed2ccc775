package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"refund-autopilot/internal/core/domain"
	"refund-autopilot/internal/core/ports"
	"refund-autopilot/internal/core/ports/mocks"
	"refund-autopilot/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type pipelineMocks struct {
	refunds   *mocks.MockRefundRepository
	audits    *mocks.MockAuditRepository
	audit     *mocks.MockAuditService
	extractor *mocks.MockExtractor
	scorer    *mocks.MockFraudScorer
	creds     *mocks.MockCredentialResolver
	stripe    *mocks.MockPaymentBackend
	shopify   *mocks.MockPaymentBackend
	notifier  *mocks.MockNotificationSink
}

func newPipeline(t *testing.T) (*RefundServiceImpl, *pipelineMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)

	m := &pipelineMocks{
		refunds:   mocks.NewMockRefundRepository(ctrl),
		audits:    mocks.NewMockAuditRepository(ctrl),
		audit:     mocks.NewMockAuditService(ctrl),
		extractor: mocks.NewMockExtractor(ctrl),
		scorer:    mocks.NewMockFraudScorer(ctrl),
		creds:     mocks.NewMockCredentialResolver(ctrl),
		stripe:    mocks.NewMockPaymentBackend(ctrl),
		shopify:   mocks.NewMockPaymentBackend(ctrl),
		notifier:  mocks.NewMockNotificationSink(ctrl),
	}
	m.stripe.EXPECT().Platform().Return(domain.PlatformStripe).AnyTimes()
	m.shopify.EXPECT().Platform().Return(domain.PlatformShopify).AnyTimes()

	svc := NewRefundService(RefundServiceDeps{
		Refunds:         m.refunds,
		Audits:          m.audits,
		Audit:           m.audit,
		Extractor:       m.extractor,
		Scorer:          m.scorer,
		Creds:           m.creds,
		Dispatcher:      NewDispatcher(zerolog.Nop(), m.stripe, m.shopify),
		Engine:          NewDecisionEngine(10000, 0.7),
		ProviderTimeout: time.Second,
		CredTimeout:     time.Second,
		DefaultCurrency: "USD",
	}, m.notifier, zerolog.Nop())

	return svc, m
}

// captureAudits records every audit action the pipeline emits.
func captureAudits(m *pipelineMocks) *[]domain.AuditAction {
	actions := &[]domain.AuditAction{}
	m.audit.EXPECT().Record(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e *domain.AuditEntry) {
			*actions = append(*actions, e.Action)
		}).AnyTimes()
	return actions
}

func strPtr(s string) *string { return &s }

func stripeCreds() *domain.Credentials {
	return &domain.Credentials{StripeSecretKey: "sk_test_x"}
}

func TestSubmit_AutoApproveExecutesViaStripe(t *testing.T) {
	svc, m := newPipeline(t)
	actions := captureAudits(m)
	tenantID := uuid.New()

	m.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
		Return(&ports.ExtractedFields{OrderID: "ORD-1001", AmountCents: 5000, Reason: "damaged item"}, nil)
	m.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(0.1, nil)
	m.creds.EXPECT().Resolve(gomock.Any(), tenantID).Return(stripeCreds(), nil)

	var created *domain.RefundRequest
	m.refunds.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r *domain.RefundRequest) error {
			created = r
			return nil
		})
	m.refunds.EXPECT().
		AdvanceStatus(gomock.Any(), gomock.Any(), domain.RefundStatusApproved, domain.RefundStatusExecuting, false).
		Return(true, nil)
	m.stripe.EXPECT().
		Refund(gomock.Any(), gomock.Any(), "pi_abc", int64(5000), "USD").
		Return(&ports.RefundReceipt{ProviderRef: "re_123"}, nil)
	m.refunds.EXPECT().
		AdvanceStatus(gomock.Any(), gomock.Any(), domain.RefundStatusExecuting, domain.RefundStatusCompleted, false).
		Return(true, nil)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any())

	result, err := svc.Submit(context.Background(), ports.SubmitInput{
		TenantID:    tenantID,
		RawMessage:  "please refund my order ORD-1001, $50",
		PaymentHint: &ports.PaymentHint{PaymentIntentID: strPtr("pi_abc")},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RefundStatusCompleted, result.Status)
	assert.Equal(t, "stripe", result.Route)
	require.NotNil(t, created)
	assert.Equal(t, domain.RefundStatusApproved, created.Status)
	require.NotNil(t, created.Platform)
	assert.Equal(t, domain.PlatformStripe, *created.Platform)
	require.NotNil(t, created.PaymentRef)
	assert.Equal(t, "pi_abc", *created.PaymentRef)

	assert.Contains(t, *actions, domain.AuditActionCreated)
	assert.Contains(t, *actions, domain.AuditActionApproved)
	assert.Contains(t, *actions, domain.AuditActionExecutionStarted)
	assert.Contains(t, *actions, domain.AuditActionExecutionSucceeded)
}

func TestSubmit_HighFraudScoreRejects(t *testing.T) {
	svc, m := newPipeline(t)
	actions := captureAudits(m)
	tenantID := uuid.New()

	m.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
		Return(&ports.ExtractedFields{OrderID: "ORD-9", AmountCents: 2000}, nil)
	m.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(0.95, nil)
	m.creds.EXPECT().Resolve(gomock.Any(), tenantID).Return(&domain.Credentials{}, nil)
	m.refunds.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any())

	result, err := svc.Submit(context.Background(), ports.SubmitInput{
		TenantID:   tenantID,
		RawMessage: "refund everything immediately",
	})
	require.NoError(t, err)

	// Rejection is a business outcome reported in the payload, not an error.
	assert.Equal(t, domain.RefundStatusRejectedFraud, result.Status)
	assert.Contains(t, *actions, domain.AuditActionFraudRejected)
	assert.NotContains(t, *actions, domain.AuditActionExecutionStarted)
}

func TestSubmit_LargeAmountPendsReview(t *testing.T) {
	svc, m := newPipeline(t)
	captureAudits(m)
	tenantID := uuid.New()

	m.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
		Return(&ports.ExtractedFields{OrderID: "ORD-2", AmountCents: 50000}, nil)
	m.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(0.2, nil)
	m.creds.EXPECT().Resolve(gomock.Any(), tenantID).Return(stripeCreds(), nil)
	m.refunds.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any())

	result, err := svc.Submit(context.Background(), ports.SubmitInput{
		TenantID:    tenantID,
		RawMessage:  "refund my $500 order",
		PaymentHint: &ports.PaymentHint{PaymentIntentID: strPtr("pi_x")},
	})
	require.NoError(t, err)

	// Nothing executes until an operator decides.
	assert.Equal(t, domain.RefundStatusPendingReview, result.Status)
	assert.Empty(t, result.Route)
}

func TestSubmit_ScorerFailureAppliesNeutralDefault(t *testing.T) {
	svc, m := newPipeline(t)
	actions := captureAudits(m)
	tenantID := uuid.New()

	m.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
		Return(&ports.ExtractedFields{OrderID: "ORD-3", AmountCents: 5000}, nil)
	m.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(0.0, errors.New("upstream timeout"))
	m.creds.EXPECT().Resolve(gomock.Any(), tenantID).Return(&domain.Credentials{}, nil)
	m.refunds.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any())

	result, err := svc.Submit(context.Background(), ports.SubmitInput{
		TenantID:   tenantID,
		RawMessage: "refund $50 please",
	})
	require.NoError(t, err)

	// 0.5 does not reject, and the small amount still auto-approves.
	assert.Equal(t, 0.5, result.FraudScore)
	assert.Contains(t, *actions, domain.AuditActionFraudScoreDefaulted)
}

func TestSubmit_ExtractionFailureStopsPipeline(t *testing.T) {
	svc, m := newPipeline(t)

	m.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("no order id found"))

	// No Create, no scoring, no notification expectations: the run must stop
	// before any of them.
	_, err := svc.Submit(context.Background(), ports.SubmitInput{
		TenantID:   uuid.New(),
		RawMessage: "hello, I am unhappy",
	})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "EXT_001", appErr.Code)
}

func TestSubmit_ApprovedWithoutRouteKeepsDecision(t *testing.T) {
	svc, m := newPipeline(t)
	actions := captureAudits(m)
	tenantID := uuid.New()

	m.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
		Return(&ports.ExtractedFields{OrderID: "ORD-4", AmountCents: 3000}, nil)
	m.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(0.1, nil)
	m.creds.EXPECT().Resolve(gomock.Any(), tenantID).Return(&domain.Credentials{}, nil)
	m.refunds.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any())

	result, err := svc.Submit(context.Background(), ports.SubmitInput{
		TenantID:   tenantID,
		RawMessage: "refund order ORD-4",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RefundStatusApproved, result.Status)
	assert.Equal(t, RouteNone, result.Route)
	assert.Contains(t, *actions, domain.AuditActionNoPaymentRoute)
}

func TestSubmit_ExplicitHintWithoutCredentialsFails(t *testing.T) {
	svc, m := newPipeline(t)
	tenantID := uuid.New()
	paypal := domain.PlatformPayPal

	m.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
		Return(&ports.ExtractedFields{OrderID: "ORD-5", AmountCents: 3000}, nil)
	m.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(0.1, nil)
	m.creds.EXPECT().Resolve(gomock.Any(), tenantID).Return(stripeCreds(), nil)

	// No Create expectation: an explicit hint that cannot be satisfied fails
	// before any record exists.
	_, err := svc.Submit(context.Background(), ports.SubmitInput{
		TenantID:    tenantID,
		RawMessage:  "refund via paypal",
		PaymentHint: &ports.PaymentHint{Platform: &paypal, SaleID: strPtr("SALE-1")},
	})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PIPE_004", appErr.Code)
}

func TestSubmit_BackendFailureMarksFailed(t *testing.T) {
	svc, m := newPipeline(t)
	actions := captureAudits(m)
	tenantID := uuid.New()

	m.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
		Return(&ports.ExtractedFields{OrderID: "ORD-6", AmountCents: 4000}, nil)
	m.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(0.1, nil)
	m.creds.EXPECT().Resolve(gomock.Any(), tenantID).Return(stripeCreds(), nil)
	m.refunds.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	m.refunds.EXPECT().
		AdvanceStatus(gomock.Any(), gomock.Any(), domain.RefundStatusApproved, domain.RefundStatusExecuting, false).
		Return(true, nil)
	m.stripe.EXPECT().
		Refund(gomock.Any(), gomock.Any(), "pi_fail", int64(4000), "USD").
		Return(nil, errors.New("charge already refunded"))
	m.refunds.EXPECT().
		AdvanceStatus(gomock.Any(), gomock.Any(), domain.RefundStatusExecuting, domain.RefundStatusFailed, false).
		Return(true, nil)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any())

	result, err := svc.Submit(context.Background(), ports.SubmitInput{
		TenantID:    tenantID,
		RawMessage:  "refund ORD-6",
		PaymentHint: &ports.PaymentHint{PaymentIntentID: strPtr("pi_fail")},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RefundStatusFailed, result.Status)
	assert.Contains(t, *actions, domain.AuditActionExecutionFailed)
}

func TestSubmit_EmptyMessageRejected(t *testing.T) {
	svc, _ := newPipeline(t)

	_, err := svc.Submit(context.Background(), ports.SubmitInput{
		TenantID:   uuid.New(),
		RawMessage: "   ",
	})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VAL_001", appErr.Code)
}

func failedRefund(tenantID uuid.UUID) *domain.RefundRequest {
	p := domain.PlatformStripe
	ref := "pi_retry"
	return &domain.RefundRequest{
		ID:          uuid.New(),
		TenantID:    tenantID,
		OrderID:     "ORD-7",
		AmountCents: 4000,
		Currency:    "USD",
		FraudScore:  0.3,
		Status:      domain.RefundStatusFailed,
		Platform:    &p,
		PaymentRef:  &ref,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestOverride_ApproveFailedRedispatchesStoredRoute(t *testing.T) {
	svc, m := newPipeline(t)
	actions := captureAudits(m)
	tenantID := uuid.New()
	refund := failedRefund(tenantID)

	m.refunds.EXPECT().GetByID(gomock.Any(), tenantID, refund.ID).Return(refund, nil)
	m.refunds.EXPECT().
		AdvanceStatus(gomock.Any(), refund.ID, domain.RefundStatusFailed, domain.RefundStatusApproved, true).
		Return(true, nil)
	m.creds.EXPECT().Resolve(gomock.Any(), tenantID).Return(stripeCreds(), nil)
	m.refunds.EXPECT().
		AdvanceStatus(gomock.Any(), refund.ID, domain.RefundStatusApproved, domain.RefundStatusExecuting, false).
		Return(true, nil)
	m.stripe.EXPECT().
		Refund(gomock.Any(), gomock.Any(), "pi_retry", int64(4000), "USD").
		Return(&ports.RefundReceipt{ProviderRef: "re_retry"}, nil)
	m.refunds.EXPECT().
		AdvanceStatus(gomock.Any(), refund.ID, domain.RefundStatusExecuting, domain.RefundStatusCompleted, false).
		Return(true, nil)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any())

	// Note: no extractor or scorer expectations. An override re-dispatch must
	// not re-run extraction or scoring.
	result, err := svc.Override(context.Background(), ports.OverrideInput{
		TenantID:  tenantID,
		RefundID:  refund.ID,
		NewStatus: domain.RefundStatusApproved,
		Actor:     "ops@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RefundStatusCompleted, result.Status)
	assert.Equal(t, "stripe", result.Route)
	assert.Contains(t, *actions, domain.AuditActionManualOverride)
	assert.Contains(t, *actions, domain.AuditActionExecutionSucceeded)
}

func TestOverride_RejectPendingReview(t *testing.T) {
	svc, m := newPipeline(t)
	captureAudits(m)
	tenantID := uuid.New()
	refund := failedRefund(tenantID)
	refund.Status = domain.RefundStatusPendingReview

	m.refunds.EXPECT().GetByID(gomock.Any(), tenantID, refund.ID).Return(refund, nil)
	m.refunds.EXPECT().
		AdvanceStatus(gomock.Any(), refund.ID, domain.RefundStatusPendingReview, domain.RefundStatusRejectedFraud, true).
		Return(true, nil)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any())

	result, err := svc.Override(context.Background(), ports.OverrideInput{
		TenantID:  tenantID,
		RefundID:  refund.ID,
		NewStatus: domain.RefundStatusRejectedFraud,
		Actor:     "ops@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RefundStatusRejectedFraud, result.Status)
}

func TestOverride_IllegalTransitionAudited(t *testing.T) {
	svc, m := newPipeline(t)
	actions := captureAudits(m)
	tenantID := uuid.New()
	refund := failedRefund(tenantID)
	refund.Status = domain.RefundStatusCompleted

	m.refunds.EXPECT().GetByID(gomock.Any(), tenantID, refund.ID).Return(refund, nil)

	_, err := svc.Override(context.Background(), ports.OverrideInput{
		TenantID:  tenantID,
		RefundID:  refund.ID,
		NewStatus: domain.RefundStatusApproved,
		Actor:     "ops@example.com",
	})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PIPE_002", appErr.Code)
	// The rejected attempt still lands on the trail.
	assert.Contains(t, *actions, domain.AuditActionManualOverride)
}

func TestOverride_NotFound(t *testing.T) {
	svc, m := newPipeline(t)
	tenantID, refundID := uuid.New(), uuid.New()

	m.refunds.EXPECT().GetByID(gomock.Any(), tenantID, refundID).Return(nil, nil)

	_, err := svc.Override(context.Background(), ports.OverrideInput{
		TenantID:  tenantID,
		RefundID:  refundID,
		NewStatus: domain.RefundStatusApproved,
	})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PIPE_003", appErr.Code)
}

func TestOverride_ConcurrentChangeConflicts(t *testing.T) {
	svc, m := newPipeline(t)
	captureAudits(m)
	tenantID := uuid.New()
	refund := failedRefund(tenantID)

	changed := *refund
	changed.Status = domain.RefundStatusExecuting

	gomock.InOrder(
		m.refunds.EXPECT().GetByID(gomock.Any(), tenantID, refund.ID).Return(refund, nil),
		m.refunds.EXPECT().
			AdvanceStatus(gomock.Any(), refund.ID, domain.RefundStatusFailed, domain.RefundStatusApproved, true).
			Return(false, nil),
		m.refunds.EXPECT().GetByID(gomock.Any(), tenantID, refund.ID).Return(&changed, nil),
	)

	_, err := svc.Override(context.Background(), ports.OverrideInput{
		TenantID:  tenantID,
		RefundID:  refund.ID,
		NewStatus: domain.RefundStatusApproved,
	})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PIPE_001", appErr.Code)
	assert.Contains(t, appErr.Message, "executing")
}

func TestList_ClampsPagination(t *testing.T) {
	svc, m := newPipeline(t)
	tenantID := uuid.New()

	m.refunds.EXPECT().
		List(gomock.Any(), ports.RefundListParams{TenantID: tenantID, Page: 1, PageSize: 20}).
		Return([]domain.RefundRequest{}, int64(0), nil)

	_, _, err := svc.List(context.Background(), ports.RefundListParams{
		TenantID: tenantID,
		Page:     0,
		PageSize: 500,
	})
	require.NoError(t, err)
}

func TestAuditTrail_UnknownRefund(t *testing.T) {
	svc, m := newPipeline(t)
	tenantID, refundID := uuid.New(), uuid.New()

	m.refunds.EXPECT().GetByID(gomock.Any(), tenantID, refundID).Return(nil, nil)

	_, err := svc.AuditTrail(context.Background(), tenantID, refundID)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PIPE_003", appErr.Code)
}
