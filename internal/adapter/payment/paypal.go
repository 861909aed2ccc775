package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"refund-autopilot/internal/core/domain"
	"refund-autopilot/internal/core/ports"

	"github.com/rs/zerolog"
)

// DefaultPayPalBaseURL is the live PayPal REST endpoint.
const DefaultPayPalBaseURL = "https://api-m.paypal.com"

// HTTPClient abstracts *http.Client for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// PayPalBackend refunds PayPal sales via the REST API. Each call fetches an
// OAuth token with the tenant's client credentials; tokens are not cached
// because credentials differ per tenant and refunds are infrequent.
type PayPalBackend struct {
	baseURL string
	client  HTTPClient
	log     zerolog.Logger
}

// NewPayPalBackend creates the PayPal payment backend.
func NewPayPalBackend(baseURL string, client HTTPClient, log zerolog.Logger) *PayPalBackend {
	if baseURL == "" {
		baseURL = DefaultPayPalBaseURL
	}
	return &PayPalBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     log.With().Str("backend", "paypal").Logger(),
	}
}

// Platform identifies this backend.
func (b *PayPalBackend) Platform() domain.Platform {
	return domain.PlatformPayPal
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type paypalRefundResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// Refund executes a sale refund for the given amount.
func (b *PayPalBackend) Refund(ctx context.Context, creds *domain.Credentials, paymentRef string, amountCents int64, currency string) (*ports.RefundReceipt, error) {
	token, err := b.oauthToken(ctx, creds)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"amount": map[string]string{
			"total":    fmt.Sprintf("%.2f", float64(amountCents)/100),
			"currency": currency,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling paypal refund: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/payments/sale/%s/refund", b.baseURL, url.PathEscape(paymentRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building paypal refund request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling paypal: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("paypal refund for sale %s returned status %d: %s",
			paymentRef, resp.StatusCode, truncate(respBody, 200))
	}

	var parsed paypalRefundResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decoding paypal refund response: %w", err)
	}

	b.log.Info().
		Str("sale_id", paymentRef).
		Str("paypal_refund_id", parsed.ID).
		Int64("amount_cents", amountCents).
		Msg("paypal refund created")

	return &ports.RefundReceipt{ProviderRef: parsed.ID}, nil
}

// oauthToken exchanges the tenant's client credentials for a bearer token.
func (b *PayPalBackend) oauthToken(ctx context.Context, creds *domain.Credentials) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building paypal token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(creds.PayPalClientID, creds.PayPalSecret)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching paypal token: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal token endpoint returned status %d: %s",
			resp.StatusCode, truncate(respBody, 200))
	}

	var parsed paypalTokenResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decoding paypal token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("paypal token response missing access_token")
	}
	return parsed.AccessToken, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
