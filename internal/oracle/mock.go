package oracle

import (
	"context"
	"sync"

	"github.com/spendlens/spendlens-backend/internal/domain/merchant"
	"github.com/spendlens/spendlens-backend/internal/domain/pattern"
)

// Mock is an in-memory oracle for testing. Results are keyed so tests can
// script per-description behavior, and call counters let tests assert that
// rule hits never reach the oracle.
type Mock struct {
	mu sync.Mutex

	// Scripted merchant results keyed by description. DefaultMerchant is
	// used when a description has no entry.
	MerchantResults map[string]*merchant.Classification
	DefaultMerchant *merchant.Classification

	// Scripted pattern verdicts keyed by the first transaction's
	// description. DefaultVerdict is used otherwise.
	PatternResults map[string]*pattern.Verdict
	DefaultVerdict *pattern.Verdict

	// Error injection.
	MerchantErr error
	PatternErr  error
	// PatternErrFor fails ClassifyPattern only for groups whose first
	// transaction matches this description.
	PatternErrFor string

	MerchantCalls int
	PatternCalls  int
}

var (
	_ merchant.Classifier = (*Mock)(nil)
	_ pattern.Oracle      = (*Mock)(nil)
)

// NewMock creates a mock oracle with a generic default verdict.
func NewMock() *Mock {
	return &Mock{
		MerchantResults: make(map[string]*merchant.Classification),
		PatternResults:  make(map[string]*pattern.Verdict),
		DefaultVerdict: &pattern.Verdict{
			Type:        pattern.TypeRecurring,
			Description: "recurring charge",
			Confidence:  0.9,
		},
	}
}

func (m *Mock) ClassifyMerchant(_ context.Context, description string) (*merchant.Classification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MerchantCalls++
	if m.MerchantErr != nil {
		return nil, m.MerchantErr
	}
	if result, ok := m.MerchantResults[description]; ok {
		return result, nil
	}
	if m.DefaultMerchant != nil {
		return m.DefaultMerchant, nil
	}
	return &merchant.Classification{
		NormalizedName: description,
		Category:       "Uncategorized",
		Confidence:     0.5,
		Flags:          []string{},
	}, nil
}

func (m *Mock) ClassifyPattern(_ context.Context, txns []pattern.Transaction) (*pattern.Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PatternCalls++
	if m.PatternErr != nil {
		return nil, m.PatternErr
	}
	if len(txns) > 0 {
		if m.PatternErrFor != "" && txns[0].Description == m.PatternErrFor {
			return nil, &Error{Op: "classify_pattern", Err: ErrMalformedResponse}
		}
		if verdict, ok := m.PatternResults[txns[0].Description]; ok {
			return verdict, nil
		}
	}
	return m.DefaultVerdict, nil
}
