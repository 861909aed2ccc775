package service

import (
	"context"
	"time"

	"refund-autopilot/internal/core/domain"
	"refund-autopilot/internal/core/ports"
	"refund-autopilot/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// allowedCredKeys is the closed set of credential keys a tenant may store.
var allowedCredKeys = map[string]bool{
	domain.CredStripeSecretKey:    true,
	domain.CredPayPalClientID:     true,
	domain.CredPayPalSecret:       true,
	domain.CredShopifyAccessToken: true,
	domain.CredShopifyShopName:    true,
	domain.CredSlackWebhookURL:    true,
	domain.CredNotifySigningKey:   true,
}

// CredentialServiceImpl stores tenant provider secrets encrypted at rest and
// resolves them into the decrypted capability set the pipeline routes on.
// It implements both ports.CredentialResolver and ports.CredentialAdminService.
type CredentialServiceImpl struct {
	repo ports.CredentialRepository
	enc  ports.EncryptionService
	log  zerolog.Logger
}

// NewCredentialService creates the credential service.
func NewCredentialService(repo ports.CredentialRepository, enc ports.EncryptionService, log zerolog.Logger) *CredentialServiceImpl {
	return &CredentialServiceImpl{
		repo: repo,
		enc:  enc,
		log:  log.With().Str("component", "credentials").Logger(),
	}
}

// Resolve loads and decrypts every stored credential for a tenant. A record
// that fails to decrypt fails the whole resolution; routing on a partial
// capability set would silently change dispatch behavior.
func (s *CredentialServiceImpl) Resolve(ctx context.Context, tenantID uuid.UUID) (*domain.Credentials, error) {
	stored, err := s.repo.GetAll(ctx, tenantID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	creds := &domain.Credentials{}
	for key, enc := range stored {
		if !allowedCredKeys[key] {
			s.log.Warn().Str("key", key).Msg("unknown credential key in store, ignoring")
			continue
		}
		value, err := s.enc.Decrypt(enc)
		if err != nil {
			return nil, apperror.ErrEncryptionFailure(err)
		}
		switch key {
		case domain.CredStripeSecretKey:
			creds.StripeSecretKey = value
		case domain.CredPayPalClientID:
			creds.PayPalClientID = value
		case domain.CredPayPalSecret:
			creds.PayPalSecret = value
		case domain.CredShopifyAccessToken:
			creds.ShopifyAccessToken = value
		case domain.CredShopifyShopName:
			creds.ShopifyShopName = value
		case domain.CredSlackWebhookURL:
			creds.SlackWebhookURL = value
		case domain.CredNotifySigningKey:
			creds.NotifySigningKey = value
		}
	}
	return creds, nil
}

// Store encrypts and upserts one credential value.
func (s *CredentialServiceImpl) Store(ctx context.Context, tenantID uuid.UUID, key, value string) error {
	if !allowedCredKeys[key] {
		return apperror.Validation("unknown credential key: " + key)
	}
	if value == "" {
		return apperror.Validation("credential value must not be empty")
	}

	enc, err := s.enc.Encrypt(value)
	if err != nil {
		return apperror.ErrEncryptionFailure(err)
	}

	rec := &domain.CredentialRecord{
		TenantID:  tenantID,
		Key:       key,
		ValueEnc:  enc,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("tenant_id", tenantID.String()).
		Str("key", key).
		Msg("credential stored")
	return nil
}

// Capabilities reports which platforms the tenant can currently dispatch to.
func (s *CredentialServiceImpl) Capabilities(ctx context.Context, tenantID uuid.UUID) (map[domain.Platform]bool, error) {
	creds, err := s.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return map[domain.Platform]bool{
		domain.PlatformStripe:  creds.HasStripe(),
		domain.PlatformPayPal:  creds.HasPayPal(),
		domain.PlatformShopify: creds.HasShopify(),
	}, nil
}
