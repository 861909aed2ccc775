package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"refund-autopilot/internal/core/ports"

	"github.com/rs/zerolog"
)

const (
	extractSystemPrompt = `You extract structured refund details from customer support messages.
Respond with a single JSON object and nothing else, using exactly these keys:
{"order_id": string, "amount": number, "customer_name": string|null, "customer_email": string|null, "reason": string}
"amount" is the refund amount in major currency units (e.g. 49.99).
Use null for fields not present in the message. Never invent an order id or amount.`

	scoreSystemPrompt = `You estimate the fraud risk of a customer refund request.
Consider urgency pressure, threats, inconsistencies, and requests to bypass process.
Respond with a single decimal number between 0 and 1 and nothing else.
0 means no fraud indicators, 1 means near-certain fraud.`
)

// Config holds the OpenAI connection settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Client calls the OpenAI chat completions API for field extraction and
// fraud scoring. It implements both ports.Extractor and ports.FraudScorer.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates an OpenAI client with the given per-request timeout.
func NewClient(cfg Config, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("component", "openai").Logger(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// complete sends one system+user exchange and returns the assistant content.
func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling openai: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading openai response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding openai response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := "unknown error"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("openai returned status %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("openai response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

type extractedJSON struct {
	OrderID       string   `json:"order_id"`
	Amount        *float64 `json:"amount"`
	CustomerName  *string  `json:"customer_name"`
	CustomerEmail *string  `json:"customer_email"`
	Reason        string   `json:"reason"`
}

// Extract pulls structured refund fields out of a raw customer message.
func (c *Client) Extract(ctx context.Context, rawMessage string) (*ports.ExtractedFields, error) {
	content, err := c.complete(ctx, extractSystemPrompt, rawMessage)
	if err != nil {
		return nil, err
	}

	var parsed extractedJSON
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &parsed); err != nil {
		return nil, fmt.Errorf("model did not return valid JSON: %w", err)
	}

	if parsed.OrderID == "" {
		return nil, errors.New("no order id found in message")
	}
	if parsed.Amount == nil || *parsed.Amount <= 0 {
		return nil, errors.New("no refund amount found in message")
	}

	fields := &ports.ExtractedFields{
		OrderID:     parsed.OrderID,
		AmountCents: int64(math.Round(*parsed.Amount * 100)),
		Reason:      parsed.Reason,
	}
	if parsed.CustomerName != nil && *parsed.CustomerName != "" {
		fields.CustomerName = parsed.CustomerName
	}
	if parsed.CustomerEmail != nil && *parsed.CustomerEmail != "" {
		fields.CustomerEmail = parsed.CustomerEmail
	}
	return fields, nil
}

// Score estimates fraud risk for a raw message. The returned value is taken
// from the model as-is; the caller owns clamping and defaulting.
func (c *Client) Score(ctx context.Context, rawMessage string) (float64, error) {
	content, err := c.complete(ctx, scoreSystemPrompt, rawMessage)
	if err != nil {
		return 0, err
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(stripCodeFence(content)), 64)
	if err != nil {
		return 0, fmt.Errorf("model did not return a number: %w", err)
	}
	return score, nil
}

// stripCodeFence removes a markdown code fence the model sometimes wraps
// around its output despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
