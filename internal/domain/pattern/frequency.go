package pattern

import (
	"math"
)

// DefaultToleranceFraction is the allowed spread around the mean interval
// before confidence starts dropping. At 0.2, a monthly cadence tolerates
// roughly +/-6 days of jitter before confidence hits zero.
const DefaultToleranceFraction = 0.2

// frequencyBand maps a closed mean-interval range to a cadence.
// Bands are disjoint; a mean outside every band classifies as irregular.
type frequencyBand struct {
	min, max  float64
	frequency Frequency
}

var frequencyBands = []frequencyBand{
	{6, 9, FrequencyWeekly},
	{13, 16, FrequencyBiweekly},
	{27, 32, FrequencyMonthly},
	{85, 95, FrequencyQuarterly},
	{350, 380, FrequencyYearly},
}

// Classifier maps interval statistics to a cadence and a confidence score.
type Classifier struct {
	// ToleranceFraction scales the allowed variance ceiling.
	ToleranceFraction float64
}

// NewClassifier returns a classifier with the default tolerance.
func NewClassifier() *Classifier {
	return &Classifier{ToleranceFraction: DefaultToleranceFraction}
}

// Classify returns the cadence for a set of day-intervals plus a confidence
// in [0,1] derived from how tightly the intervals cluster around their mean.
//
// Fewer than one interval cannot establish a cadence and returns
// (IRREGULAR, 0). A single interval classifies by its value but carries
// confidence 0: one gap is no evidence of regularity, and callers are
// expected to fall back to an external signal for two-transaction groups.
func (c *Classifier) Classify(intervals []int) (Frequency, float64) {
	if len(intervals) == 0 {
		return FrequencyIrregular, 0
	}

	mean := MeanInterval(intervals)
	freq := classifyMean(mean)

	if len(intervals) < 2 {
		return freq, 0
	}

	return freq, c.confidence(intervals, mean)
}

// confidence compares interval variance against an allowed ceiling
// proportional to (mean * tolerance)^2 and clamps the result to [0,1].
func (c *Classifier) confidence(intervals []int, mean float64) float64 {
	tolerance := c.ToleranceFraction
	if tolerance <= 0 {
		tolerance = DefaultToleranceFraction
	}

	allowed := math.Pow(math.Abs(mean)*tolerance, 2)
	if allowed == 0 {
		// Mean of zero days (all same-day duplicates) is not a cadence.
		return 0
	}

	var variance float64
	for _, iv := range intervals {
		d := float64(iv) - mean
		variance += d * d
	}
	variance /= float64(len(intervals))

	conf := 1 - variance/allowed
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return math.Round(conf*100) / 100
}

// MeanInterval returns the arithmetic mean of the day-intervals.
func MeanInterval(intervals []int) float64 {
	if len(intervals) == 0 {
		return 0
	}
	var sum int
	for _, iv := range intervals {
		sum += iv
	}
	return float64(sum) / float64(len(intervals))
}

func classifyMean(mean float64) Frequency {
	for _, band := range frequencyBands {
		if mean >= band.min && mean <= band.max {
			return band.frequency
		}
	}
	return FrequencyIrregular
}
