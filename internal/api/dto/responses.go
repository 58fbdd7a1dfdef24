package dto

import (
	"time"

	"github.com/spendlens/spendlens-backend/internal/domain/merchant"
	"github.com/spendlens/spendlens-backend/internal/domain/pattern"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/storage"
)

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// NormalizeResponse is the canonical merchant for a raw description.
type NormalizeResponse struct {
	NormalizedName string   `json:"normalized_name"`
	Category       string   `json:"category"`
	SubCategory    string   `json:"sub_category,omitempty"`
	Confidence     float64  `json:"confidence"`
	Flags          []string `json:"flags,omitempty"`
}

// ToNormalizeResponse converts a domain classification.
func ToNormalizeResponse(c *merchant.Classification) NormalizeResponse {
	return NormalizeResponse{
		NormalizedName: c.NormalizedName,
		Category:       c.Category,
		SubCategory:    c.SubCategory,
		Confidence:     c.Confidence,
		Flags:          c.Flags,
	}
}

// DetectionResponse is one pattern detection from an ad hoc analysis run.
type DetectionResponse struct {
	Type             string   `json:"type"`
	Merchant         string   `json:"merchant"`
	Amount           float64  `json:"amount"`
	FixedAmount      bool     `json:"fixed_amount"`
	Frequency        string   `json:"frequency"`
	Confidence       float64  `json:"confidence"`
	NextExpectedDate *string  `json:"next_expected_date,omitempty"`
	Description      string   `json:"description,omitempty"`
	TransactionCount int      `json:"transaction_count"`
	AverageInterval  float64  `json:"average_interval"`
}

// ToDetectionResponse converts a domain detection.
func ToDetectionResponse(d *pattern.Detection) DetectionResponse {
	resp := DetectionResponse{
		Type:             string(d.Type),
		Merchant:         d.MerchantID,
		Amount:           d.Amount,
		FixedAmount:      d.FixedAmount,
		Frequency:        string(d.Frequency),
		Confidence:       d.Confidence,
		Description:      d.Description,
		TransactionCount: d.TransactionCount,
		AverageInterval:  d.AverageInterval,
	}
	if d.NextExpectedDate != nil {
		next := d.NextExpectedDate.Format("2006-01-02")
		resp.NextExpectedDate = &next
	}
	return resp
}

// AnalyzeResponse is the result of an ad hoc pattern analysis.
type AnalyzeResponse struct {
	DetectedPatterns []DetectionResponse `json:"detected_patterns"`
}

// UploadResponse summarizes a processed CSV upload.
type UploadResponse struct {
	ProcessedCount int               `json:"processed_count"`
	FailedCount    int               `json:"failed_count"`
	Errors         []string          `json:"errors"`
	Transactions   []SavedResource   `json:"transactions"`
	Patterns       []*storage.Pattern `json:"patterns"`
}

// SavedResource identifies one record persisted during an upload.
type SavedResource struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}
