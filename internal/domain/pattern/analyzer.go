package pattern

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Verdict is the qualitative judgement the classification oracle returns
// for a merchant group: what kind of pattern it is and why.
type Verdict struct {
	Type        Type
	Description string
	Confidence  float64
}

// Oracle produces a qualitative pattern classification for a merchant's
// transactions. Implementations must return a typed error rather than an
// empty verdict when the backing service is unreachable or unparseable.
type Oracle interface {
	ClassifyPattern(ctx context.Context, txns []Transaction) (*Verdict, error)
}

// Analyzer turns one merchant group into at most one Detection.
type Analyzer struct {
	oracle     Oracle
	classifier *Classifier
	logger     *slog.Logger
}

// NewAnalyzer creates an analyzer. A nil logger falls back to slog.Default.
func NewAnalyzer(oracle Oracle, classifier *Classifier, logger *slog.Logger) *Analyzer {
	if classifier == nil {
		classifier = NewClassifier()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		oracle:     oracle,
		classifier: classifier,
		logger:     logger,
	}
}

// Analyze computes the cadence, confidence, representative amount and next
// expected date for the merchant's transactions, then asks the oracle for
// the qualitative type and description.
//
// Groups with fewer than two transactions carry no evidence of recurrence
// and yield (nil, nil). An oracle failure is returned to the caller so the
// batch layer can skip this group without aborting siblings.
func (a *Analyzer) Analyze(ctx context.Context, merchantID string, txns []Transaction) (*Detection, error) {
	if len(txns) < 2 {
		return nil, nil
	}

	intervals := Intervals(txns)
	frequency, confidence := a.classifier.Classify(intervals)
	meanInterval := MeanInterval(intervals)

	amount, fixed := representativeAmount(txns)
	next := nextExpectedDate(txns, meanInterval)

	verdict, err := a.oracle.ClassifyPattern(ctx, txns)
	if err != nil {
		return nil, fmt.Errorf("oracle classification for merchant %s: %w", merchantID, err)
	}

	// With only one interval the variance-based score carries no signal,
	// so trust the oracle's reported confidence instead.
	if len(intervals) < 2 {
		confidence = clampUnit(verdict.Confidence)
	}

	if fixed && verdict.Type != TypeSubscription {
		a.logger.Debug("fixed-amount group classified as non-subscription by oracle",
			"merchant_id", merchantID,
			"oracle_type", string(verdict.Type),
		)
	}

	return &Detection{
		Type:             verdict.Type,
		MerchantID:       merchantID,
		Amount:           amount,
		FixedAmount:      fixed,
		Frequency:        frequency,
		Confidence:       confidence,
		NextExpectedDate: next,
		Description:      verdict.Description,
		TransactionCount: len(txns),
		AverageInterval:  meanInterval,
	}, nil
}

// representativeAmount returns the mean of absolute transaction amounts
// rounded to cents, and whether every amount matched exactly. The exact
// fixed-amount case distinguishes a true subscription from a variable
// recurring charge.
func representativeAmount(txns []Transaction) (float64, bool) {
	first := math.Abs(txns[0].Amount)
	fixed := true

	var sum float64
	for _, t := range txns {
		abs := math.Abs(t.Amount)
		sum += abs
		if abs != first {
			fixed = false
		}
	}

	if fixed {
		return math.Round(first*100) / 100, true
	}
	mean := sum / float64(len(txns))
	return math.Round(mean*100) / 100, false
}

// nextExpectedDate projects the mean interval forward from the latest
// transaction. A non-positive mean cannot produce a date strictly after the
// latest occurrence, so no prediction is made.
func nextExpectedDate(txns []Transaction, meanInterval float64) *time.Time {
	if meanInterval <= 0 {
		return nil
	}
	latest := LatestDate(txns)
	next := latest.Add(time.Duration(meanInterval * 24 * float64(time.Hour)))
	if !next.After(latest) {
		return nil
	}
	return &next
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
