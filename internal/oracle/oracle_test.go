package oracle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendlens/spendlens-backend/internal/domain/merchant"
	"github.com/spendlens/spendlens-backend/internal/domain/pattern"
	"github.com/spendlens/spendlens-backend/internal/oracle"
)

// scriptedChat answers every completion with a canned payload or error.
type scriptedChat struct {
	content string
	err     error
	last    oracle.ChatCompletionRequest
}

func (s *scriptedChat) CreateChatCompletion(_ context.Context, req oracle.ChatCompletionRequest) (*oracle.ChatCompletionResponse, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &oracle.ChatCompletionResponse{
		Choices: []oracle.Choice{
			{Message: oracle.Message{Role: "assistant", Content: s.content}},
		},
	}, nil
}

func sampleTxns() []pattern.Transaction {
	return []pattern.Transaction{
		{Description: "NETFLIX.COM", Amount: -19.99, Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Description: "NETFLIX.COM", Amount: -19.99, Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func TestClient_ClassifyMerchant(t *testing.T) {
	ctx := context.Background()

	t.Run("parses a well-formed response", func(t *testing.T) {
		chat := &scriptedChat{content: `{
			"merchant": "Netflix",
			"category": "Entertainment",
			"sub_category": "Streaming Service",
			"confidence": 0.95,
			"flags": ["subscription", "digital_service"]
		}`}
		client := oracle.NewClient(chat, oracle.DefaultConfig())

		got, err := client.ClassifyMerchant(ctx, "NETFLIX.COM 866-579-7172")

		require.NoError(t, err)
		assert.Equal(t, "Netflix", got.NormalizedName)
		assert.Equal(t, "Entertainment", got.Category)
		assert.Equal(t, "Streaming Service", got.SubCategory)
		assert.Equal(t, 0.95, got.Confidence)
		assert.Equal(t, []string{"subscription", "digital_service"}, got.Flags)
	})

	t.Run("requests JSON mode with the configured model", func(t *testing.T) {
		chat := &scriptedChat{content: `{"merchant": "X", "category": "Other"}`}
		client := oracle.NewClient(chat, oracle.Config{Model: "gpt-4o-mini", Temperature: 0.1})

		_, err := client.ClassifyMerchant(ctx, "X STORE")

		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", chat.last.Model)
		require.NotNil(t, chat.last.ResponseFormat)
		assert.Equal(t, "json_object", chat.last.ResponseFormat.Type)
	})

	t.Run("out-of-range confidence falls back to default", func(t *testing.T) {
		chat := &scriptedChat{content: `{"merchant": "X", "category": "Other", "confidence": 7}`}
		client := oracle.NewClient(chat, oracle.DefaultConfig())

		got, err := client.ClassifyMerchant(ctx, "X STORE")

		require.NoError(t, err)
		assert.Equal(t, 0.8, got.Confidence)
	})

	t.Run("missing merchant is a typed malformed-response error", func(t *testing.T) {
		chat := &scriptedChat{content: `{"category": "Other"}`}
		client := oracle.NewClient(chat, oracle.DefaultConfig())

		_, err := client.ClassifyMerchant(ctx, "X STORE")

		require.Error(t, err)
		assert.True(t, oracle.IsOracleError(err))
		assert.ErrorIs(t, err, oracle.ErrMalformedResponse)
	})

	t.Run("non-JSON content is a typed malformed-response error", func(t *testing.T) {
		chat := &scriptedChat{content: `I cannot help with that`}
		client := oracle.NewClient(chat, oracle.DefaultConfig())

		_, err := client.ClassifyMerchant(ctx, "X STORE")

		require.Error(t, err)
		assert.ErrorIs(t, err, oracle.ErrMalformedResponse)
	})

	t.Run("transport errors are wrapped as oracle errors", func(t *testing.T) {
		chat := &scriptedChat{err: errors.New("connection refused")}
		client := oracle.NewClient(chat, oracle.DefaultConfig())

		_, err := client.ClassifyMerchant(ctx, "X STORE")

		require.Error(t, err)
		assert.True(t, oracle.IsOracleError(err))
	})
}

func TestClient_ClassifyPattern(t *testing.T) {
	ctx := context.Background()

	t.Run("parses a well-formed verdict", func(t *testing.T) {
		chat := &scriptedChat{content: `{
			"type": "SUBSCRIPTION",
			"confidence": 0.92,
			"description": "Fixed monthly streaming charge"
		}`}
		client := oracle.NewClient(chat, oracle.DefaultConfig())

		got, err := client.ClassifyPattern(ctx, sampleTxns())

		require.NoError(t, err)
		assert.Equal(t, pattern.TypeSubscription, got.Type)
		assert.Equal(t, 0.92, got.Confidence)
		assert.Equal(t, "Fixed monthly streaming charge", got.Description)
	})

	t.Run("accepts lowercase type values", func(t *testing.T) {
		chat := &scriptedChat{content: `{"type": "recurring", "confidence": 0.6, "description": "varies"}`}
		client := oracle.NewClient(chat, oracle.DefaultConfig())

		got, err := client.ClassifyPattern(ctx, sampleTxns())

		require.NoError(t, err)
		assert.Equal(t, pattern.TypeRecurring, got.Type)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		chat := &scriptedChat{content: `{"type": "SOMETIMES", "confidence": 0.6, "description": "x"}`}
		client := oracle.NewClient(chat, oracle.DefaultConfig())

		_, err := client.ClassifyPattern(ctx, sampleTxns())

		require.Error(t, err)
		assert.ErrorIs(t, err, oracle.ErrMalformedResponse)
	})

	t.Run("explicit zero confidence is preserved", func(t *testing.T) {
		chat := &scriptedChat{content: `{"type": "PERIODIC", "confidence": 0, "description": "weak pattern"}`}
		client := oracle.NewClient(chat, oracle.DefaultConfig())

		got, err := client.ClassifyPattern(ctx, sampleTxns())

		require.NoError(t, err)
		assert.Zero(t, got.Confidence)
	})

	t.Run("missing confidence is rejected", func(t *testing.T) {
		chat := &scriptedChat{content: `{"type": "PERIODIC", "description": "x"}`}
		client := oracle.NewClient(chat, oracle.DefaultConfig())

		_, err := client.ClassifyPattern(ctx, sampleTxns())

		require.Error(t, err)
		assert.ErrorIs(t, err, oracle.ErrMalformedResponse)
	})

	t.Run("prompt includes every transaction", func(t *testing.T) {
		chat := &scriptedChat{content: `{"type": "SUBSCRIPTION", "confidence": 0.9, "description": "x"}`}
		client := oracle.NewClient(chat, oracle.DefaultConfig())

		_, err := client.ClassifyPattern(ctx, sampleTxns())

		require.NoError(t, err)
		require.Len(t, chat.last.Messages, 2)
		assert.Contains(t, chat.last.Messages[1].Content, "2024-01-01")
		assert.Contains(t, chat.last.Messages[1].Content, "2024-02-01")
	})
}

func TestMock(t *testing.T) {
	ctx := context.Background()

	t.Run("per-description merchant results", func(t *testing.T) {
		mock := oracle.NewMock()
		mock.MerchantResults["NETFLIX.COM"] = &merchant.Classification{
			NormalizedName: "Netflix",
			Category:       "Entertainment",
			Confidence:     0.95,
			Flags:          []string{},
		}

		got, err := mock.ClassifyMerchant(ctx, "NETFLIX.COM")

		require.NoError(t, err)
		assert.Equal(t, "Netflix", got.NormalizedName)
		assert.Equal(t, 1, mock.MerchantCalls)
	})

	t.Run("injected pattern error", func(t *testing.T) {
		mock := oracle.NewMock()
		mock.PatternErr = errors.New("boom")

		_, err := mock.ClassifyPattern(ctx, sampleTxns())

		require.Error(t, err)
	})
}
