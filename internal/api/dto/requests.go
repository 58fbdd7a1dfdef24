package dto

// CreateTransactionRequest submits one transaction for analysis.
type CreateTransactionRequest struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
}

// AnalyzeRequest submits a batch of transactions for pattern detection.
type AnalyzeRequest struct {
	Transactions []CreateTransactionRequest `json:"transactions"`
}

// NormalizeRequest asks for the canonical merchant of one description.
type NormalizeRequest struct {
	Description string `json:"description"`
}

// CreateMerchantRequest creates a merchant directly.
type CreateMerchantRequest struct {
	OriginalName   string   `json:"original_name"`
	NormalizedName string   `json:"normalized_name"`
	Category       string   `json:"category"`
	SubCategory    string   `json:"sub_category,omitempty"`
	Confidence     float64  `json:"confidence,omitempty"`
	Flags          []string `json:"flags,omitempty"`
}

// UpdateMerchantRequest changes merchant attributes. Empty fields keep
// their current value.
type UpdateMerchantRequest struct {
	NormalizedName string   `json:"normalized_name,omitempty"`
	Category       string   `json:"category,omitempty"`
	SubCategory    string   `json:"sub_category,omitempty"`
	Flags          []string `json:"flags,omitempty"`
}

// CreateRuleRequest registers a normalization override rule.
type CreateRuleRequest struct {
	Pattern        string  `json:"pattern"`
	NormalizedName string  `json:"normalized_name"`
	Category       string  `json:"category"`
	SubCategory    string  `json:"sub_category,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	Priority       int     `json:"priority"`
}
