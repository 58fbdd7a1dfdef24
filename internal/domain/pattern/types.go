// Package pattern implements recurring-spend detection: it measures the
// day-gaps between a merchant's transactions, classifies the cadence,
// scores how regular the cadence is, and predicts the next occurrence.
package pattern

import (
	"time"
)

// Transaction is the minimal view of a transaction the engine needs.
// Instances are supplied by the caller per analysis request and never mutated.
type Transaction struct {
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Date        time.Time `json:"date"`
}

// Frequency is the discretized time-between-occurrences classification.
type Frequency string

const (
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyBiweekly  Frequency = "BIWEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyYearly    Frequency = "YEARLY"
	FrequencyIrregular Frequency = "IRREGULAR"
)

// Type describes the qualitative kind of a detected pattern.
type Type string

const (
	TypeSubscription Type = "SUBSCRIPTION"
	TypeRecurring    Type = "RECURRING"
	TypePeriodic     Type = "PERIODIC"
)

// Detection is the analyzer's output for one merchant group.
type Detection struct {
	Type             Type       `json:"type"`
	MerchantID       string     `json:"merchant_id"`
	Amount           float64    `json:"amount"`
	FixedAmount      bool       `json:"fixed_amount"`
	Frequency        Frequency  `json:"frequency"`
	Confidence       float64    `json:"confidence"`
	NextExpectedDate *time.Time `json:"next_expected_date,omitempty"`
	Description      string     `json:"description,omitempty"`
	TransactionCount int        `json:"transaction_count"`
	AverageInterval  float64    `json:"average_interval"`
}
