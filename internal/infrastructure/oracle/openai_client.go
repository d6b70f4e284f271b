// Package oracle provides the HTTP client for the external text-generation
// service used as the matching fallback tier.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/arflow/backend/internal/domain/matching"
	"go.uber.org/zap"
)

const (
	defaultModel      = "gpt-4o-mini"
	defaultTimeout    = 5 * time.Second
	initialRetryDelay = 1 * time.Second
)

const systemPrompt = `You are a payment reconciliation assistant. You receive one customer payment and a list of open invoices for the same account. Decide which invoice(s) the payment settles.

Respond with a single JSON object and nothing else:
{"confidence": <number between 0 and 1>, "matches": [{"invoice_number": "<string>", "amount_applied": <number>}]}

Rules:
- Only use invoice numbers from the candidate list.
- amount_applied must not exceed the invoice's outstanding amount.
- The sum of amount_applied must not exceed the payment amount.
- If nothing plausibly matches, return {"confidence": 0, "matches": []}.`

// Client calls an OpenAI-compatible chat completions endpoint and parses the
// strict-JSON suggestion it returns.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	maxRetries int
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds the settings needed to reach the completion endpoint
type Config struct {
	Endpoint   string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewClient creates a new oracle client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	// No retries by default; one payment must not block a run for long
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		model:      model,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SuggestMatch asks the completion endpoint for a match suggestion. Any
// transport, protocol, or parse failure is returned as an error; the matching
// engine treats every error as "no match".
func (c *Client) SuggestMatch(ctx context.Context, mc matching.MatchContext) (*matching.Suggestion, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("oracle endpoint not configured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(mc)},
		},
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Retry with exponential backoff on rate limits and server errors
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * initialRetryDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr apiError
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
				lastErr = fmt.Errorf("oracle API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
			} else {
				lastErr = fmt.Errorf("oracle API error (%d)", resp.StatusCode)
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				c.logger.Warn("Oracle request failed, retrying",
					zap.Int("status", resp.StatusCode),
					zap.Int("attempt", attempt+1))
				continue
			}
			return nil, lastErr
		}

		return parseSuggestion(respBody)
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// buildUserPrompt renders the payment and candidate invoices as structured
// text. Internal IDs are never sent; invoices are keyed by number.
func buildUserPrompt(mc matching.MatchContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Payment: amount=%s date=%s", mc.PaymentAmount.StringFixed(2), mc.PaymentDate.Format("2006-01-02"))
	if mc.Reference != "" {
		fmt.Fprintf(&b, " reference=%q", mc.Reference)
	}
	if mc.InvoiceNumberHint != "" {
		fmt.Fprintf(&b, " invoice_hint=%q", mc.InvoiceNumberHint)
	}
	if mc.Notes != "" {
		fmt.Fprintf(&b, " notes=%q", mc.Notes)
	}
	b.WriteString("\n\nCandidate invoices:\n")
	for _, cand := range mc.Candidates {
		fmt.Fprintf(&b, "- number=%s outstanding=%s due=%s\n",
			cand.InvoiceNumber, cand.OutstandingAmount.StringFixed(2), cand.DueDate.Format("2006-01-02"))
	}
	return b.String()
}

// parseSuggestion extracts the JSON suggestion from the completion response.
// The model is instructed to emit JSON only, but a fenced code block is
// tolerated since models wrap output despite instructions.
func parseSuggestion(respBody []byte) (*matching.Suggestion, error) {
	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var suggestion matching.Suggestion
	if err := json.Unmarshal([]byte(content), &suggestion); err != nil {
		return nil, fmt.Errorf("oracle returned malformed suggestion: %w", err)
	}
	if suggestion.Confidence < 0 || suggestion.Confidence > 1 {
		return nil, fmt.Errorf("oracle returned out-of-range confidence %f", suggestion.Confidence)
	}
	return &suggestion, nil
}

// Ensure Client implements MatchOracle
var _ matching.MatchOracle = (*Client)(nil)
