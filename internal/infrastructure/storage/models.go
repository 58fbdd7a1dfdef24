package storage

import (
	"encoding/json"
	"time"
)

// Merchant is a canonical merchant record. OriginalName preserves the raw
// description that first created the merchant; NormalizedName is unique.
type Merchant struct {
	ID             string    `json:"id"`
	OriginalName   string    `json:"original_name"`
	NormalizedName string    `json:"normalized_name"`
	Category       string    `json:"category"`
	SubCategory    string    `json:"sub_category,omitempty"`
	Confidence     float64   `json:"confidence"`
	IsActive       bool      `json:"is_active"`
	Flags          []string  `json:"flags"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Transaction is a persisted, analyzed transaction row.
type Transaction struct {
	ID             string     `json:"id"`
	MerchantID     string     `json:"merchant_id"`
	Description    string     `json:"description"`
	Amount         float64    `json:"amount"`
	Date           time.Time  `json:"date"`
	Category       string     `json:"category"`
	SubCategory    string     `json:"sub_category,omitempty"`
	Confidence     float64    `json:"confidence"`
	IsSubscription bool       `json:"is_subscription"`
	Flags          []string   `json:"flags"`
	IsAnalyzed     bool       `json:"is_analyzed"`
	AnalyzedAt     *time.Time `json:"analyzed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Pattern is a detected recurring-spend record. Patterns are append-only:
// each analysis run inserts fresh rows and never mutates prior ones.
type Pattern struct {
	ID               string     `json:"id"`
	MerchantID       string     `json:"merchant_id"`
	Type             string     `json:"type"`
	Amount           float64    `json:"amount"`
	Frequency        string     `json:"frequency"`
	Confidence       float64    `json:"confidence"`
	NextExpectedDate *time.Time `json:"next_expected_date,omitempty"`
	Description      string     `json:"description,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Analysis detail stored as JSON
	Metadata     *PatternMetadata `json:"metadata,omitempty"`
	MetadataJSON string           `json:"-"` // For DB storage
}

// PatternMetadata captures how a pattern was derived.
type PatternMetadata struct {
	AnalysisDate     time.Time `json:"analysis_date"`
	TransactionCount int       `json:"transaction_count"`
	AverageInterval  float64   `json:"average_interval"`
	FixedAmount      bool      `json:"fixed_amount"`
}

// EncodeMetadata serializes the metadata for storage.
func (p *Pattern) EncodeMetadata() error {
	if p.Metadata == nil {
		p.MetadataJSON = ""
		return nil
	}
	data, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	p.MetadataJSON = string(data)
	return nil
}

// DecodeMetadata restores the metadata from its stored form.
func (p *Pattern) DecodeMetadata() error {
	if p.MetadataJSON == "" {
		p.Metadata = nil
		return nil
	}
	var meta PatternMetadata
	if err := json.Unmarshal([]byte(p.MetadataJSON), &meta); err != nil {
		return err
	}
	p.Metadata = &meta
	return nil
}

// MerchantRule is one regex override entry for merchant normalization.
type MerchantRule struct {
	ID             string    `json:"id"`
	MerchantID     string    `json:"merchant_id,omitempty"`
	Pattern        string    `json:"pattern"`
	NormalizedName string    `json:"normalized_name"`
	Category       string    `json:"category"`
	SubCategory    string    `json:"sub_category,omitempty"`
	Confidence     float64   `json:"confidence"`
	Priority       int       `json:"priority"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// TransactionFilters narrows and pages ListTransactions results.
type TransactionFilters struct {
	MerchantID string
	Category   string
	Search     string // Matches description or merchant normalized name
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int    // 0 = default 50
	Offset     int
	OrderBy    string // "date", "amount", "category" (default: "date")
	OrderDesc  bool
}

// TransactionList is a paginated ListTransactions result.
type TransactionList struct {
	Items      []*Transaction `json:"items"`
	TotalCount int            `json:"total_count"`
	Limit      int            `json:"limit"`
	Offset     int            `json:"offset"`
}

func encodeFlags(flags []string) string {
	if len(flags) == 0 {
		return "[]"
	}
	data, err := json.Marshal(flags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeFlags(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var flags []string
	if err := json.Unmarshal([]byte(raw), &flags); err != nil {
		return []string{}
	}
	return flags
}
