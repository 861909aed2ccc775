package domain

import (
	"time"

	"github.com/google/uuid"
)

// TenantStatus represents the state of a tenant (merchant) account.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "ACTIVE"
	TenantStatusSuspended TenantStatus = "SUSPENDED"
)

// Tenant is a merchant account, the unit of credential and data isolation.
type Tenant struct {
	ID           uuid.UUID    `json:"id"`
	Username     string       `json:"username"`
	PasswordHash string       `json:"-"` // Never expose
	TenantName   string       `json:"tenant_name"`
	Status       TenantStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// IsActive returns true if the tenant account is active.
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// Credential keys recognised by the capability resolver. Values are stored
// AES-256-GCM encrypted and decrypted only on resolution.
const (
	CredStripeSecretKey    = "stripe_secret_key"
	CredPayPalClientID     = "paypal_client_id"
	CredPayPalSecret       = "paypal_secret"
	CredShopifyAccessToken = "shopify_access_token"
	CredShopifyShopName    = "shopify_shop_name"
	CredSlackWebhookURL    = "slack_webhook_url"
	CredNotifySigningKey   = "notify_signing_key"
)

// CredentialRecord is one encrypted per-tenant secret at rest.
type CredentialRecord struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	Key       string    `json:"key"`
	ValueEnc  string    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credentials is the decrypted per-tenant capability set. The pipeline treats
// the secret values as opaque handles consumed only by payment backends and
// the notification sink.
type Credentials struct {
	StripeSecretKey    string
	PayPalClientID     string
	PayPalSecret       string
	ShopifyAccessToken string
	ShopifyShopName    string
	SlackWebhookURL    string
	NotifySigningKey   string
}

// HasStripe reports whether Stripe refunds can be executed for this tenant.
func (c *Credentials) HasStripe() bool { return c.StripeSecretKey != "" }

// HasPayPal reports whether PayPal refunds can be executed for this tenant.
func (c *Credentials) HasPayPal() bool {
	return c.PayPalClientID != "" && c.PayPalSecret != ""
}

// HasShopify reports whether Shopify refunds can be executed for this tenant.
func (c *Credentials) HasShopify() bool {
	return c.ShopifyAccessToken != "" && c.ShopifyShopName != ""
}

// Has reports whether the given platform is usable for this tenant.
func (c *Credentials) Has(p Platform) bool {
	switch p {
	case PlatformStripe:
		return c.HasStripe()
	case PlatformPayPal:
		return c.HasPayPal()
	case PlatformShopify:
		return c.HasShopify()
	}
	return false
}
