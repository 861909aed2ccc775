package integration

import (
	"net/http"
	"sync"
	"testing"

	"refund-autopilot/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentOverrides verifies at-most-once dispatch under racing operator
// approvals. Many concurrent overrides of the same pending refund must produce
// exactly one backend execution; every loser observes a conflict or an illegal
// transition, never a second payout.
func TestConcurrentOverrides(t *testing.T) {
	app := newTestApp(t)
	app.storeCredential(t, "stripe_secret_key", "sk_live_acme")
	app.ai.extractFn = func(string) (*ports.ExtractedFields, error) {
		return &ports.ExtractedFields{OrderID: "A-500", AmountCents: 50000, Reason: "big order"}, nil
	}

	resp := app.post(t, "/api/v1/refunds",
		`{"message":"refund my $500 order","platform":"stripe","payment_intent_id":"pi_big"}`,
		app.token)
	require.Equal(t, http.StatusCreated, resp.code, resp.body)
	require.Equal(t, "pending_review", resp.data["status"])
	refundID := resp.data["refund_id"].(string)

	const workers = 20
	var wg sync.WaitGroup
	codes := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := app.post(t, "/api/v1/refunds/"+refundID+"/override", `{"status":"approved"}`, app.token)
			codes[i] = r.code
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			succeeded++
		case http.StatusConflict, http.StatusUnprocessableEntity:
			// losers of the compare-and-swap race
		default:
			t.Fatalf("unexpected status code %d", code)
		}
	}

	assert.Equal(t, 1, succeeded, "exactly one override may win")
	assert.Equal(t, int64(1), app.stripe.calls.Load(), "the refund must be executed at most once")

	got := app.get(t, "/api/v1/refunds/"+refundID, app.token)
	require.Equal(t, http.StatusOK, got.code)
	assert.Equal(t, "completed", got.data["status"])
}

// TestConcurrentSubmissions verifies independent refunds do not interfere:
// every submission runs its own pipeline to completion.
func TestConcurrentSubmissions(t *testing.T) {
	app := newTestApp(t)
	app.storeCredential(t, "stripe_secret_key", "sk_live_acme")

	const workers = 25
	var wg sync.WaitGroup
	codes := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := app.post(t, "/api/v1/refunds",
				`{"message":"refund order A-100","platform":"stripe","payment_intent_id":"pi_n"}`,
				app.token)
			codes[i] = r.code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusCreated, code, "submission %d", i)
	}
	assert.Equal(t, int64(workers), app.stripe.calls.Load())

	list := app.get(t, "/api/v1/refunds?status=completed&page_size=50", app.token)
	require.Equal(t, http.StatusOK, list.code)
	assert.Equal(t, float64(workers), list.data["total"])
}
