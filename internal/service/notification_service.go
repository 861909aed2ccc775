package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"refund-autopilot/internal/core/ports"

	"github.com/rs/zerolog"
)

// HTTPClient abstracts *http.Client for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const notifyMaxAttempts = 3

// SlackNotifier posts refund outcomes to a tenant's Slack webhook. Delivery
// is fire-and-forget: it runs off the request path, retries a couple of
// times, and failures only ever produce a log line. Tenants without a
// configured webhook are skipped silently.
type SlackNotifier struct {
	creds   ports.CredentialResolver
	signer  ports.SignatureService
	client  HTTPClient
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewSlackNotifier creates a notifier with the given delivery timeout per
// notification (covering all retry attempts).
func NewSlackNotifier(creds ports.CredentialResolver, signer ports.SignatureService, client HTTPClient, timeout time.Duration, log zerolog.Logger) *SlackNotifier {
	return &SlackNotifier{
		creds:   creds,
		signer:  signer,
		client:  client,
		timeout: timeout,
		log:     log.With().Str("component", "notifier").Logger(),
	}
}

// Notify queues one delivery. It never blocks the caller and never reports
// failure; the request context is deliberately not inherited so an HTTP
// response going out does not cancel the delivery.
func (n *SlackNotifier) Notify(_ context.Context, note ports.Notification) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliver(note)
	}()
}

// Flush blocks until all queued deliveries finish. Called on shutdown and by
// tests that need deterministic completion.
func (n *SlackNotifier) Flush() {
	n.wg.Wait()
}

type slackMessage struct {
	Text       string  `json:"text"`
	RefundID   string  `json:"refund_id"`
	OrderID    string  `json:"order_id"`
	Amount     string  `json:"amount"`
	Status     string  `json:"status"`
	FraudScore float64 `json:"fraud_score"`
	Route      string  `json:"route,omitempty"`
}

func (n *SlackNotifier) deliver(note ports.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	creds, err := n.creds.Resolve(ctx, note.TenantID)
	if err != nil {
		n.log.Warn().Err(err).
			Str("refund_id", note.RefundID.String()).
			Msg("credential lookup failed, notification dropped")
		return
	}
	if creds.SlackWebhookURL == "" {
		n.log.Debug().
			Str("tenant_id", note.TenantID.String()).
			Msg("no slack webhook configured, skipping notification")
		return
	}

	amount := fmt.Sprintf("%.2f %s", float64(note.AmountCents)/100, note.Currency)
	msg := slackMessage{
		Text: fmt.Sprintf("Refund %s for order %s: %s (%s, fraud score %.2f)",
			note.RefundID, note.OrderID, note.Status, amount, note.FraudScore),
		RefundID:   note.RefundID.String(),
		OrderID:    note.OrderID,
		Amount:     amount,
		Status:     string(note.Status),
		FraudScore: note.FraudScore,
		Route:      note.Route,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		n.log.Error().Err(err).Msg("notification payload marshal failed")
		return
	}

	var signature string
	if creds.NotifySigningKey != "" {
		signature = n.signer.Sign(creds.NotifySigningKey, string(body))
	}

	for attempt := 1; attempt <= notifyMaxAttempts; attempt++ {
		if err = n.post(ctx, creds.SlackWebhookURL, body, signature); err == nil {
			return
		}
		if attempt < notifyMaxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			case <-ctx.Done():
				attempt = notifyMaxAttempts
			}
		}
	}
	n.log.Warn().Err(err).
		Str("refund_id", note.RefundID.String()).
		Msg("notification delivery failed after retries")
}

func (n *SlackNotifier) post(ctx context.Context, url string, body []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Refund-Signature", signature)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
