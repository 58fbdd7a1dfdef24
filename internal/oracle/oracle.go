// Package oracle adapts an OpenAI chat model into the classification
// oracle the engine consumes: free-text merchant normalization and
// qualitative pattern judgement. Responses are validated against a strict
// schema at this boundary; anything non-conforming comes back as a typed
// error, never as loosely-typed data.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spendlens/spendlens-backend/internal/domain/merchant"
	"github.com/spendlens/spendlens-backend/internal/domain/pattern"
)

const (
	defaultModel       = "gpt-4o"
	defaultTemperature = 0.2
	maxTokens          = 500
)

// Config holds oracle tuning parameters.
type Config struct {
	Model       string
	Temperature float64
}

// DefaultConfig returns the model defaults used in production.
func DefaultConfig() Config {
	return Config{
		Model:       defaultModel,
		Temperature: defaultTemperature,
	}
}

// Client is the concrete classification oracle.
type Client struct {
	chat ChatClient
	cfg  Config
}

// Compile-time interface checks against the consuming domain packages.
var (
	_ merchant.Classifier = (*Client)(nil)
	_ pattern.Oracle      = (*Client)(nil)
)

// NewClient creates an oracle over the given chat transport.
func NewClient(chat ChatClient, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	return &Client{chat: chat, cfg: cfg}
}

// ClassifyMerchant normalizes one transaction description into a canonical
// merchant name with category metadata.
func (c *Client) ClassifyMerchant(ctx context.Context, description string) (*merchant.Classification, error) {
	content, err := c.complete(ctx,
		"You are a financial transaction analyzer specialized in merchant normalization and categorization.",
		buildMerchantPrompt(description),
	)
	if err != nil {
		return nil, &Error{Op: "classify_merchant", Err: err}
	}

	var raw struct {
		Merchant    string   `json:"merchant"`
		Category    string   `json:"category"`
		SubCategory string   `json:"sub_category"`
		Confidence  float64  `json:"confidence"`
		Flags       []string `json:"flags"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, &Error{Op: "classify_merchant", Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	if raw.Merchant == "" || raw.Category == "" {
		return nil, &Error{Op: "classify_merchant", Err: fmt.Errorf("%w: missing merchant or category", ErrMalformedResponse)}
	}

	confidence := raw.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.8
	}
	flags := raw.Flags
	if flags == nil {
		flags = []string{}
	}

	return &merchant.Classification{
		NormalizedName: raw.Merchant,
		Category:       raw.Category,
		SubCategory:    raw.SubCategory,
		Confidence:     confidence,
		Flags:          flags,
	}, nil
}

// ClassifyPattern judges whether a merchant's transactions form a
// subscription, a variable recurring charge, or a merely periodic one.
func (c *Client) ClassifyPattern(ctx context.Context, txns []pattern.Transaction) (*pattern.Verdict, error) {
	content, err := c.complete(ctx,
		"You are a financial pattern analyzer specialized in detecting transaction patterns.",
		buildPatternPrompt(txns),
	)
	if err != nil {
		return nil, &Error{Op: "classify_pattern", Err: err}
	}

	var raw struct {
		Type        string   `json:"type"`
		Description string   `json:"description"`
		Confidence  *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, &Error{Op: "classify_pattern", Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	if raw.Type == "" || raw.Description == "" || raw.Confidence == nil {
		return nil, &Error{Op: "classify_pattern", Err: fmt.Errorf("%w: missing type, description or confidence", ErrMalformedResponse)}
	}

	patternType, ok := parsePatternType(raw.Type)
	if !ok {
		return nil, &Error{Op: "classify_pattern", Err: fmt.Errorf("%w: unknown type %q", ErrMalformedResponse, raw.Type)}
	}

	return &pattern.Verdict{
		Type:        patternType,
		Description: raw.Description,
		Confidence:  *raw.Confidence,
	}, nil
}

// complete runs one chat request and returns the assistant's JSON content.
func (c *Client) complete(ctx context.Context, system, prompt string) (string, error) {
	response, err := c.chat.CreateChatCompletion(ctx, ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   maxTokens,
		ResponseFormat: &ResponseFormat{
			Type: "json_object",
		},
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	return response.Choices[0].Message.Content, nil
}

func parsePatternType(raw string) (pattern.Type, bool) {
	switch pattern.Type(strings.ToUpper(strings.TrimSpace(raw))) {
	case pattern.TypeSubscription:
		return pattern.TypeSubscription, true
	case pattern.TypeRecurring:
		return pattern.TypeRecurring, true
	case pattern.TypePeriodic:
		return pattern.TypePeriodic, true
	}
	return "", false
}

func buildMerchantPrompt(description string) string {
	return fmt.Sprintf(`Analyze this merchant description and provide normalized details:
Description: %q

Rules:
1. Name: Remove common prefixes/suffixes (e.g., AMZN MKTP -> Amazon)
2. Category: Use standard categories (Shopping, Entertainment, Food & Dining, etc.)
3. SubCategory: Use specific values (Online Retail, Streaming Service, etc.)
4. Flags: Add relevant flags (digital_service, subscription, marketplace, etc.)

Respond in JSON format:
{
  "merchant": "normalized name",
  "category": "main category",
  "sub_category": "specific subcategory",
  "confidence": 0-1,
  "flags": ["flag1", "flag2"]
}`, description)
}

func buildPatternPrompt(txns []pattern.Transaction) string {
	var list strings.Builder
	for _, t := range txns {
		list.WriteString(fmt.Sprintf("- %s: $%.2f on %s\n", t.Description, t.Amount, t.Date.Format("2006-01-02")))
	}

	return fmt.Sprintf(`Analyze these transactions and determine if they form a pattern:

Transactions:
%s
Determine:
1. If this is a SUBSCRIPTION (fixed amount), RECURRING (variable amount) or PERIODIC pattern
2. Confidence score based on consistency
3. Detailed explanation of the pattern

Respond in JSON format:
{
  "type": "SUBSCRIPTION|RECURRING|PERIODIC",
  "confidence": 0-1,
  "description": "detailed explanation"
}`, list.String())
}
