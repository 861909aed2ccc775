package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"refund-autopilot/internal/core/domain"
	"refund-autopilot/internal/core/ports"

	"github.com/rs/zerolog"
)

const shopifyAPIVersion = "2024-01"

// ShopifyBackend refunds Shopify orders through the Admin REST API. The
// payment reference is the Shopify order id; Shopify resolves the original
// transaction itself.
type ShopifyBackend struct {
	// baseURL overrides the per-shop admin URL; empty in production, set by
	// tests to point at a local server.
	baseURL string
	client  HTTPClient
	log     zerolog.Logger
}

// NewShopifyBackend creates the Shopify payment backend.
func NewShopifyBackend(baseURL string, client HTTPClient, log zerolog.Logger) *ShopifyBackend {
	return &ShopifyBackend{
		baseURL: baseURL,
		client:  client,
		log:     log.With().Str("backend", "shopify").Logger(),
	}
}

// Platform identifies this backend.
func (b *ShopifyBackend) Platform() domain.Platform {
	return domain.PlatformShopify
}

type shopifyRefundResponse struct {
	Refund struct {
		ID int64 `json:"id"`
	} `json:"refund"`
}

// Refund creates a refund on a Shopify order.
func (b *ShopifyBackend) Refund(ctx context.Context, creds *domain.Credentials, paymentRef string, amountCents int64, currency string) (*ports.RefundReceipt, error) {
	body, err := json.Marshal(map[string]any{
		"refund": map[string]any{
			"note":     "customer refund via support pipeline",
			"currency": currency,
			"notify":   true,
			"transactions": []map[string]any{
				{
					"kind":    "refund",
					"amount":  fmt.Sprintf("%.2f", float64(amountCents)/100),
					"gateway": "manual",
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling shopify refund: %w", err)
	}

	endpoint := fmt.Sprintf("%s/admin/api/%s/orders/%s/refunds.json",
		b.shopURL(creds.ShopifyShopName), shopifyAPIVersion, url.PathEscape(paymentRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building shopify refund request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", creds.ShopifyAccessToken)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling shopify: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("shopify refund for order %s returned status %d: %s",
			paymentRef, resp.StatusCode, truncate(respBody, 200))
	}

	var parsed shopifyRefundResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decoding shopify refund response: %w", err)
	}

	b.log.Info().
		Str("order_id", paymentRef).
		Int64("shopify_refund_id", parsed.Refund.ID).
		Int64("amount_cents", amountCents).
		Msg("shopify refund created")

	return &ports.RefundReceipt{ProviderRef: fmt.Sprintf("%d", parsed.Refund.ID)}, nil
}

func (b *ShopifyBackend) shopURL(shopName string) string {
	if b.baseURL != "" {
		return b.baseURL
	}
	return fmt.Sprintf("https://%s.myshopify.com", shopName)
}
