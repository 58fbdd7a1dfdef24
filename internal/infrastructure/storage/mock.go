package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps, making tests fast and isolated.
type MockRepository struct {
	mu           sync.Mutex
	merchants    map[string]*Merchant
	transactions map[string]*Transaction
	patterns     map[string]*Pattern
	rules        map[string]*MerchantRule

	// Hooks for test assertions
	CreatePatternCalled  bool
	LastCreatedPattern   *Pattern
	CreateMerchantCalled bool

	// Error injection for testing error paths
	CreateMerchantErr    error
	CreateTransactionErr error
	CreatePatternErr     error
	CreateRuleErr        error
	FindMerchantErr      error
	ListRulesErr         error
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		merchants:    make(map[string]*Merchant),
		transactions: make(map[string]*Transaction),
		patterns:     make(map[string]*Pattern),
		rules:        make(map[string]*MerchantRule),
	}
}

func (m *MockRepository) Close() error { return nil }

func (m *MockRepository) CreateMerchant(_ context.Context, merchant *Merchant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateMerchantCalled = true
	if m.CreateMerchantErr != nil {
		return m.CreateMerchantErr
	}
	for _, existing := range m.merchants {
		if existing.NormalizedName == merchant.NormalizedName {
			return fmt.Errorf("merchant already exists: %s", merchant.NormalizedName)
		}
	}
	copied := *merchant
	m.merchants[merchant.ID] = &copied
	return nil
}

func (m *MockRepository) GetMerchant(_ context.Context, id string) (*Merchant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	merchant, ok := m.merchants[id]
	if !ok {
		return nil, nil
	}
	copied := *merchant
	return &copied, nil
}

func (m *MockRepository) FindMerchantByNormalizedName(_ context.Context, name string) (*Merchant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FindMerchantErr != nil {
		return nil, m.FindMerchantErr
	}
	for _, merchant := range m.merchants {
		if merchant.NormalizedName == name {
			copied := *merchant
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *MockRepository) UpdateMerchant(_ context.Context, merchant *Merchant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.merchants[merchant.ID]; !ok {
		return fmt.Errorf("merchant not found: %s", merchant.ID)
	}
	copied := *merchant
	m.merchants[merchant.ID] = &copied
	return nil
}

func (m *MockRepository) DeactivateMerchant(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	merchant, ok := m.merchants[id]
	if !ok {
		return fmt.Errorf("merchant not found: %s", id)
	}
	merchant.IsActive = false
	return nil
}

func (m *MockRepository) CreateTransaction(_ context.Context, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateTransactionErr != nil {
		return m.CreateTransactionErr
	}
	copied := *t
	m.transactions[t.ID] = &copied
	return nil
}

func (m *MockRepository) GetTransaction(_ context.Context, id string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transactions[id]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (m *MockRepository) ListTransactions(_ context.Context, filters TransactionFilters) (*TransactionList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []*Transaction
	for _, t := range m.transactions {
		if filters.MerchantID != "" && t.MerchantID != filters.MerchantID {
			continue
		}
		if filters.Category != "" && t.Category != filters.Category {
			continue
		}
		if filters.StartDate != nil && t.Date.Before(*filters.StartDate) {
			continue
		}
		if filters.EndDate != nil && t.Date.After(*filters.EndDate) {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(t.Description), strings.ToLower(filters.Search)) {
			continue
		}
		copied := *t
		items = append(items, &copied)
	}

	sort.Slice(items, func(i, j int) bool {
		if filters.OrderDesc {
			return items[i].Date.After(items[j].Date)
		}
		return items[i].Date.Before(items[j].Date)
	})

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	total := len(items)
	if filters.Offset < len(items) {
		items = items[filters.Offset:]
	} else {
		items = nil
	}
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = make([]*Transaction, 0)
	}

	return &TransactionList{
		Items:      items,
		TotalCount: total,
		Limit:      limit,
		Offset:     filters.Offset,
	}, nil
}

func (m *MockRepository) CreatePattern(_ context.Context, p *Pattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreatePatternCalled = true
	if m.CreatePatternErr != nil {
		return m.CreatePatternErr
	}
	if _, ok := m.merchants[p.MerchantID]; !ok {
		return fmt.Errorf("merchant not found: %s", p.MerchantID)
	}
	copied := *p
	m.patterns[p.ID] = &copied
	m.LastCreatedPattern = &copied
	return nil
}

func (m *MockRepository) ListPatternsByMerchant(_ context.Context, merchantID string) ([]*Pattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var patterns []*Pattern
	for _, p := range m.patterns {
		if p.MerchantID == merchantID {
			copied := *p
			patterns = append(patterns, &copied)
		}
	}
	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].Confidence > patterns[j].Confidence
	})
	return patterns, nil
}

func (m *MockRepository) ListPatterns(_ context.Context) ([]*Pattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var patterns []*Pattern
	for _, p := range m.patterns {
		copied := *p
		patterns = append(patterns, &copied)
	}
	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].Confidence > patterns[j].Confidence
	})
	return patterns, nil
}

func (m *MockRepository) CreateRule(_ context.Context, r *MerchantRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateRuleErr != nil {
		return m.CreateRuleErr
	}
	copied := *r
	m.rules[r.ID] = &copied
	return nil
}

func (m *MockRepository) ListActiveRules(_ context.Context) ([]*MerchantRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListRulesErr != nil {
		return nil, m.ListRulesErr
	}
	var rules []*MerchantRule
	for _, r := range m.rules {
		if r.IsActive {
			copied := *r
			rules = append(rules, &copied)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	return rules, nil
}

// AddMerchant seeds a merchant for tests.
func (m *MockRepository) AddMerchant(merchant *Merchant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *merchant
	m.merchants[merchant.ID] = &copied
}

// AddRule seeds a rule for tests.
func (m *MockRepository) AddRule(rule *MerchantRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *rule
	m.rules[rule.ID] = &copied
}

// PatternCount reports how many patterns have been persisted.
func (m *MockRepository) PatternCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.patterns)
}
