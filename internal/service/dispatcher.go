package service

import (
	"context"
	"errors"

	"refund-autopilot/internal/core/domain"
	"refund-autopilot/internal/core/ports"
	"refund-autopilot/pkg/apperror"

	"github.com/rs/zerolog"
)

// ErrNoPaymentRoute reports that no configured platform can execute the
// refund. It is a business outcome, not a pipeline failure: the refund record
// keeps its decision status and the caller is told no route exists.
var ErrNoPaymentRoute = errors.New("no payment route available for tenant")

// RouteNone is the route label reported when an approved refund could not be
// matched to any payment platform.
const RouteNone = "no_payment_route"

// Route is a resolved dispatch target: the platform plus the provider-side
// payment reference its backend needs to execute the refund.
type Route struct {
	Platform   domain.Platform
	PaymentRef string
}

// Dispatcher selects the payment backend for a refund and invokes it exactly
// once per execution attempt. Platform selection never falls through: once a
// platform is chosen, its failure is the outcome.
type Dispatcher struct {
	backends map[domain.Platform]ports.PaymentBackend
	log      zerolog.Logger
}

// NewDispatcher registers the given backends by platform.
func NewDispatcher(log zerolog.Logger, backends ...ports.PaymentBackend) *Dispatcher {
	m := make(map[domain.Platform]ports.PaymentBackend, len(backends))
	for _, b := range backends {
		m[b.Platform()] = b
	}
	return &Dispatcher{
		backends: m,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// SelectRoute picks the platform for a refund.
//
// An explicit platform hint wins: if the tenant has matching credentials the
// hinted platform is used, otherwise selection fails with an unsupported
// platform error (no silent fallback to auto-detection).
//
// Without a hint, detection runs in fixed order: Stripe when a payment intent
// id is present and Stripe credentials exist, then PayPal when a sale id is
// present and PayPal credentials exist, then Shopify on credentials alone
// (the order id doubles as the provider reference). If nothing matches,
// ErrNoPaymentRoute is returned.
func (d *Dispatcher) SelectRoute(hint *ports.PaymentHint, orderID string, creds *domain.Credentials) (*Route, error) {
	if hint != nil && hint.Platform != nil {
		p := *hint.Platform
		if !creds.Has(p) {
			return nil, apperror.ErrUnsupportedPlatform(string(p))
		}
		ref, err := refForPlatform(p, hint, orderID)
		if err != nil {
			return nil, err
		}
		return &Route{Platform: p, PaymentRef: ref}, nil
	}

	if hint != nil && hint.PaymentIntentID != nil && *hint.PaymentIntentID != "" && creds.HasStripe() {
		return &Route{Platform: domain.PlatformStripe, PaymentRef: *hint.PaymentIntentID}, nil
	}
	if hint != nil && hint.SaleID != nil && *hint.SaleID != "" && creds.HasPayPal() {
		return &Route{Platform: domain.PlatformPayPal, PaymentRef: *hint.SaleID}, nil
	}
	if creds.HasShopify() {
		return &Route{Platform: domain.PlatformShopify, PaymentRef: orderID}, nil
	}

	return nil, ErrNoPaymentRoute
}

func refForPlatform(p domain.Platform, hint *ports.PaymentHint, orderID string) (string, error) {
	switch p {
	case domain.PlatformStripe:
		if hint.PaymentIntentID == nil || *hint.PaymentIntentID == "" {
			return "", apperror.Validation("payment_intent_id is required for stripe refunds")
		}
		return *hint.PaymentIntentID, nil
	case domain.PlatformPayPal:
		if hint.SaleID == nil || *hint.SaleID == "" {
			return "", apperror.Validation("sale_id is required for paypal refunds")
		}
		return *hint.SaleID, nil
	case domain.PlatformShopify:
		return orderID, nil
	}
	return "", apperror.ErrUnsupportedPlatform(string(p))
}

// Execute invokes the backend for the given route. One attempt, no retries;
// the caller records the outcome on the ledger either way.
func (d *Dispatcher) Execute(ctx context.Context, route Route, creds *domain.Credentials, amountCents int64, currency string) (*ports.RefundReceipt, error) {
	backend, ok := d.backends[route.Platform]
	if !ok {
		return nil, apperror.ErrUnsupportedPlatform(string(route.Platform))
	}

	d.log.Debug().
		Str("platform", string(route.Platform)).
		Int64("amount_cents", amountCents).
		Str("currency", currency).
		Msg("dispatching refund to payment backend")

	receipt, err := backend.Refund(ctx, creds, route.PaymentRef, amountCents, currency)
	if err != nil {
		d.log.Warn().
			Err(err).
			Str("platform", string(route.Platform)).
			Msg("payment backend refund failed")
		return nil, err
	}
	return receipt, nil
}
