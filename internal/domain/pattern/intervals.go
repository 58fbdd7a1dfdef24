package pattern

import (
	"math"
	"sort"
	"time"
)

// Intervals returns the whole-day gaps between chronologically adjacent
// transactions. The input is not modified; ties on date keep input order.
// The result has length len(txns)-1 (nil for empty or singleton input).
//
// Gaps are rounded to whole days so time-of-day noise inside a group does
// not shift the cadence. Zero and negative gaps are passed through as data;
// the classifier penalizes them via variance rather than erroring.
func Intervals(txns []Transaction) []int {
	if len(txns) < 2 {
		return nil
	}

	sorted := make([]Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	intervals := make([]int, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Date.Sub(sorted[i-1].Date)
		days := int(math.Round(gap.Hours() / 24))
		intervals = append(intervals, days)
	}

	return intervals
}

// LatestDate returns the most recent transaction date in the group.
func LatestDate(txns []Transaction) time.Time {
	var latest time.Time
	for _, t := range txns {
		if t.Date.After(latest) {
			latest = t.Date
		}
	}
	return latest
}
