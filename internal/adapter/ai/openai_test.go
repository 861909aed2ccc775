package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:  "test-key",
		Model:   "gpt-4",
		BaseURL: srv.URL,
	}, 5*time.Second, zerolog.Nop())
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	err := json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	require.NoError(t, err)
}

func TestExtract_Success(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)
		chatReply(t, w, `{"order_id":"ORD-1001","amount":49.99,"customer_name":"Jo Smith","customer_email":null,"reason":"item damaged"}`)
	})

	fields, err := c.Extract(context.Background(), "my order ORD-1001 arrived broken, refund $49.99")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "ORD-1001", fields.OrderID)
	assert.Equal(t, int64(4999), fields.AmountCents)
	require.NotNil(t, fields.CustomerName)
	assert.Equal(t, "Jo Smith", *fields.CustomerName)
	assert.Nil(t, fields.CustomerEmail)
	assert.Equal(t, "item damaged", fields.Reason)
}

func TestExtract_HandlesCodeFencedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "```json\n{\"order_id\":\"ORD-2\",\"amount\":10}\n```")
	})

	fields, err := c.Extract(context.Background(), "refund ORD-2, ten dollars")
	require.NoError(t, err)
	assert.Equal(t, "ORD-2", fields.OrderID)
	assert.Equal(t, int64(1000), fields.AmountCents)
}

func TestExtract_MissingOrderID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"order_id":"","amount":10,"reason":"unhappy"}`)
	})

	_, err := c.Extract(context.Background(), "I want my money back")
	assert.ErrorContains(t, err, "order id")
}

func TestExtract_MissingAmount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"order_id":"ORD-3","amount":null}`)
	})

	_, err := c.Extract(context.Background(), "refund order ORD-3")
	assert.ErrorContains(t, err, "amount")
}

func TestExtract_NonJSONResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "I could not determine the order details.")
	})

	_, err := c.Extract(context.Background(), "hello")
	assert.ErrorContains(t, err, "valid JSON")
}

func TestExtract_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limit reached", "type": "requests"},
		})
	})

	_, err := c.Extract(context.Background(), "refund ORD-4")
	assert.ErrorContains(t, err, "429")
}

func TestScore_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "0.85\n")
	})

	score, err := c.Score(context.Background(), "wire me the money NOW or I sue")
	require.NoError(t, err)
	assert.Equal(t, 0.85, score)
}

func TestScore_NonNumericResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "the risk is moderate")
	})

	_, err := c.Score(context.Background(), "refund please")
	assert.ErrorContains(t, err, "number")
}
