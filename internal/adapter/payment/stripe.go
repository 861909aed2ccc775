package payment

import (
	"context"
	"fmt"

	"refund-autopilot/internal/core/domain"
	"refund-autopilot/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v83"
	stripeclient "github.com/stripe/stripe-go/v83/client"
)

// StripeBackend refunds Stripe payment intents. A client is built per call
// because the API key is a tenant credential, not process configuration.
type StripeBackend struct {
	log zerolog.Logger
}

// NewStripeBackend creates the Stripe payment backend.
func NewStripeBackend(log zerolog.Logger) *StripeBackend {
	return &StripeBackend{log: log.With().Str("backend", "stripe").Logger()}
}

// Platform identifies this backend.
func (b *StripeBackend) Platform() domain.Platform {
	return domain.PlatformStripe
}

// Refund issues a partial or full refund against a payment intent.
func (b *StripeBackend) Refund(ctx context.Context, creds *domain.Credentials, paymentRef string, amountCents int64, currency string) (*ports.RefundReceipt, error) {
	api := &stripeclient.API{}
	api.Init(creds.StripeSecretKey, nil)

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentRef),
		Amount:        stripe.Int64(amountCents),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx

	res, err := api.Refunds.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe refund for %s: %w", paymentRef, err)
	}

	b.log.Info().
		Str("payment_intent", paymentRef).
		Str("stripe_refund_id", res.ID).
		Int64("amount_cents", amountCents).
		Msg("stripe refund created")

	return &ports.RefundReceipt{ProviderRef: res.ID}, nil
}
