package storage

import "context"

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	MerchantRepository
	TransactionRepository
	PatternRepository
	RuleRepository
	Close() error
}

// MerchantRepository handles merchant records.
type MerchantRepository interface {
	// CreateMerchant inserts a new merchant.
	CreateMerchant(ctx context.Context, m *Merchant) error

	// GetMerchant retrieves a merchant by id, or nil when absent.
	GetMerchant(ctx context.Context, id string) (*Merchant, error)

	// FindMerchantByNormalizedName retrieves a merchant by canonical name,
	// or nil when absent.
	FindMerchantByNormalizedName(ctx context.Context, name string) (*Merchant, error)

	// UpdateMerchant persists changed merchant fields.
	UpdateMerchant(ctx context.Context, m *Merchant) error

	// DeactivateMerchant marks a merchant inactive.
	DeactivateMerchant(ctx context.Context, id string) error
}

// TransactionRepository handles transaction rows.
type TransactionRepository interface {
	// CreateTransaction inserts a new transaction.
	CreateTransaction(ctx context.Context, t *Transaction) error

	// GetTransaction retrieves a transaction by id, or nil when absent.
	GetTransaction(ctx context.Context, id string) (*Transaction, error)

	// ListTransactions returns transactions matching the filters.
	ListTransactions(ctx context.Context, filters TransactionFilters) (*TransactionList, error)
}

// PatternRepository handles detected pattern rows.
type PatternRepository interface {
	// CreatePattern inserts a pattern atomically: the merchant existence
	// check and the row insert share one database transaction.
	CreatePattern(ctx context.Context, p *Pattern) error

	// ListPatternsByMerchant returns a merchant's patterns, confidence
	// descending.
	ListPatternsByMerchant(ctx context.Context, merchantID string) ([]*Pattern, error)

	// ListPatterns returns all patterns, confidence then recency descending.
	ListPatterns(ctx context.Context) ([]*Pattern, error)
}

// RuleRepository handles merchant override rules.
type RuleRepository interface {
	// CreateRule inserts a new rule.
	CreateRule(ctx context.Context, r *MerchantRule) error

	// ListActiveRules returns active rules, priority descending.
	ListActiveRules(ctx context.Context) ([]*MerchantRule, error)
}
