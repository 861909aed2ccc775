package postgres

import (
	"context"
	"testing"
	"time"

	"refund-autopilot/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialRepo_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCredentialRepo(mock)
	rec := &domain.CredentialRecord{
		TenantID:  uuid.New(),
		Key:       domain.CredStripeSecretKey,
		ValueEnc:  "base64-ciphertext",
		UpdatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectExec("INSERT INTO tenant_credentials").
		WithArgs(rec.TenantID, rec.Key, rec.ValueEnc, rec.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Upsert(context.Background(), rec)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepo_GetAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCredentialRepo(mock)
	tenantID := uuid.New()

	rows := pgxmock.NewRows([]string{"key", "value_enc"}).
		AddRow(domain.CredStripeSecretKey, "enc-1").
		AddRow(domain.CredSlackWebhookURL, "enc-2")

	mock.ExpectQuery("SELECT key, value_enc FROM tenant_credentials").
		WithArgs(tenantID).
		WillReturnRows(rows)

	creds, err := repo.GetAll(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		domain.CredStripeSecretKey: "enc-1",
		domain.CredSlackWebhookURL: "enc-2",
	}, creds)
}

func TestCredentialRepo_GetAll_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCredentialRepo(mock)
	tenantID := uuid.New()

	mock.ExpectQuery("SELECT key, value_enc FROM tenant_credentials").
		WithArgs(tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"key", "value_enc"}))

	creds, err := repo.GetAll(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Empty(t, creds)
}
