package ports

import (
	"context"
	"time"

	"refund-autopilot/internal/core/domain"

	"github.com/google/uuid"
)

// --- External collaborators (AI, credentials, payment platforms) ---

// ExtractedFields holds the structured refund details pulled out of a raw
// customer message. OrderID and AmountCents are required; the rest may be
// absent from the input.
type ExtractedFields struct {
	OrderID       string
	AmountCents   int64
	CustomerName  *string
	CustomerEmail *string
	Reason        string
}

// Extractor turns an unstructured customer message into typed refund fields.
// It fails when order id or amount cannot be determined; extraction failures
// stop the pipeline and are not retried.
type Extractor interface {
	Extract(ctx context.Context, rawMessage string) (*ExtractedFields, error)
}

// FraudScorer produces a fraud risk estimate in [0, 1] for a raw message.
type FraudScorer interface {
	Score(ctx context.Context, rawMessage string) (float64, error)
}

// CredentialResolver looks up and decrypts the per-tenant capability set.
type CredentialResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID) (*domain.Credentials, error)
}

// RefundReceipt is the normalized result of a successful backend refund call.
type RefundReceipt struct {
	ProviderRef string
}

// PaymentBackend executes a refund against one payment platform. All three
// implementations (Stripe, PayPal, Shopify) satisfy this identical shape.
// Exactly one backend is invoked per dispatch, at most once.
type PaymentBackend interface {
	Platform() domain.Platform
	Refund(ctx context.Context, creds *domain.Credentials, paymentRef string, amountCents int64, currency string) (*RefundReceipt, error)
}

// PaymentHint is caller-supplied payment info used for backend selection.
type PaymentHint struct {
	Platform        *domain.Platform
	PaymentIntentID *string // Stripe
	SaleID          *string // PayPal
}

// --- Side channels ---

// Notification summarises a pipeline run's terminal outcome.
type Notification struct {
	RefundID    uuid.UUID
	TenantID    uuid.UUID
	OrderID     string
	AmountCents int64
	Currency    string
	Status      domain.RefundStatus
	FraudScore  float64
	Route       string // platform name, or "no_payment_route"
}

// NotificationSink delivers best-effort operator alerts. Implementations must
// never let their own failure change the caller's response or persisted
// state; no error is returned by design of the contract.
type NotificationSink interface {
	Notify(ctx context.Context, n Notification)
}

// AuditService appends audit entries without ever aborting the triggering
// pipeline step. Dropped reports how many entries failed to persist.
type AuditService interface {
	Record(ctx context.Context, e *domain.AuditEntry)
	Dropped() int64
}

// --- Core pipeline ---

// SubmitInput is the validated input for one pipeline run.
type SubmitInput struct {
	TenantID       uuid.UUID
	RawMessage     string
	PaymentHint    *PaymentHint
	ManualOverride bool
	Actor          string
}

// SubmitResult is returned to the HTTP layer after a pipeline run.
type SubmitResult struct {
	RefundID   uuid.UUID
	Status     domain.RefundStatus
	FraudScore float64
	Route      string // selected platform, or "no_payment_route"
}

// OverrideInput is an authenticated operator override action.
type OverrideInput struct {
	TenantID  uuid.UUID
	RefundID  uuid.UUID
	NewStatus domain.RefundStatus
	Actor     string
}

// OverrideResult reports the record state after an override.
type OverrideResult struct {
	RefundID uuid.UUID
	Status   domain.RefundStatus
	Route    string
}

// RefundService is the refund decision & dispatch pipeline.
type RefundService interface {
	Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error)
	Override(ctx context.Context, in OverrideInput) (*OverrideResult, error)
	Get(ctx context.Context, tenantID, refundID uuid.UUID) (*domain.RefundRequest, error)
	List(ctx context.Context, params RefundListParams) ([]domain.RefundRequest, int64, error)
	AuditTrail(ctx context.Context, tenantID, refundID uuid.UUID) ([]domain.AuditEntry, error)
}

// CredentialAdminService manages per-tenant provider secrets.
type CredentialAdminService interface {
	Store(ctx context.Context, tenantID uuid.UUID, key, value string) error
	// Capabilities lists which platforms are currently configured.
	Capabilities(ctx context.Context, tenantID uuid.UUID) (map[domain.Platform]bool, error)
}

// --- Operator authentication ---

// AuthService defines operator authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.Tenant, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for tenant registration.
type RegisterRequest struct {
	Username   string
	Password   string
	TenantName string
}

// TokenService handles JWT token operations for operator sessions.
type TokenService interface {
	Generate(tenantID uuid.UUID, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	TenantID uuid.UUID
	Username string
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// EncryptionService handles AES-256-GCM encryption of credentials at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService signs outbound notification payloads (HMAC-SHA256).
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}
