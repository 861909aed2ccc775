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

// AuthServiceImpl handles tenant operator registration and login.
type AuthServiceImpl struct {
	tenants ports.TenantRepository
	hash    ports.HashService
	tokens  ports.TokenService
	log     zerolog.Logger
}

// NewAuthService creates the auth service.
func NewAuthService(tenants ports.TenantRepository, hash ports.HashService, tokens ports.TokenService, log zerolog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		tenants: tenants,
		hash:    hash,
		tokens:  tokens,
		log:     log.With().Str("component", "auth").Logger(),
	}
}

// Register creates a new tenant account with a hashed password.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*domain.Tenant, error) {
	if len(req.Username) < 3 {
		return nil, apperror.Validation("username must be at least 3 characters")
	}
	if len(req.Password) < 8 {
		return nil, apperror.Validation("password must be at least 8 characters")
	}
	if req.TenantName == "" {
		return nil, apperror.Validation("tenant_name is required")
	}

	existing, err := s.tenants.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	passwordHash, err := s.hash.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	now := time.Now().UTC()
	tenant := &domain.Tenant{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: passwordHash,
		TenantName:   req.TenantName,
		Status:       domain.TenantStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("tenant_id", tenant.ID.String()).
		Str("username", tenant.Username).
		Msg("tenant registered")
	return tenant, nil
}

// Login verifies credentials and issues a session token. Failed lookups and
// failed password checks produce the same error, so usernames cannot be
// probed.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	tenant, err := s.tenants.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, apperror.ErrDatabaseError(err)
	}
	if tenant == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	ok, err := s.hash.Verify(password, tenant.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(err)
	}
	if !ok {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	if !tenant.IsActive() {
		return "", time.Time{}, apperror.ErrTenantSuspended()
	}

	token, expiresAt, err := s.tokens.Generate(tenant.ID, tenant.Username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(err)
	}
	return token, expiresAt, nil
}
