package pattern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spendlens/spendlens-backend/internal/domain/pattern"
)

func TestClassifier_Classify(t *testing.T) {
	c := pattern.NewClassifier()

	t.Run("band boundaries", func(t *testing.T) {
		cases := []struct {
			name      string
			intervals []int
			want      pattern.Frequency
		}{
			{"weekly low edge", []int{6, 6}, pattern.FrequencyWeekly},
			{"weekly", []int{7, 7, 7}, pattern.FrequencyWeekly},
			{"weekly high edge", []int{9, 9}, pattern.FrequencyWeekly},
			{"biweekly", []int{14, 14}, pattern.FrequencyBiweekly},
			{"monthly low edge", []int{27, 27}, pattern.FrequencyMonthly},
			{"monthly", []int{30, 31, 30}, pattern.FrequencyMonthly},
			{"monthly high edge", []int{32, 32}, pattern.FrequencyMonthly},
			{"quarterly", []int{90, 91}, pattern.FrequencyQuarterly},
			{"yearly", []int{365, 366}, pattern.FrequencyYearly},
			{"gap between bands", []int{45, 45}, pattern.FrequencyIrregular},
			{"below all bands", []int{2, 3}, pattern.FrequencyIrregular},
			{"above all bands", []int{400, 410}, pattern.FrequencyIrregular},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				freq, _ := c.Classify(tc.intervals)
				assert.Equal(t, tc.want, freq)
			})
		}
	})

	t.Run("no intervals classify as irregular with zero confidence", func(t *testing.T) {
		freq, conf := c.Classify(nil)
		assert.Equal(t, pattern.FrequencyIrregular, freq)
		assert.Zero(t, conf)
	})

	t.Run("single interval classifies but carries no confidence", func(t *testing.T) {
		freq, conf := c.Classify([]int{31})
		assert.Equal(t, pattern.FrequencyMonthly, freq)
		assert.Zero(t, conf)
	})

	t.Run("perfectly regular intervals score full confidence", func(t *testing.T) {
		_, conf := c.Classify([]int{7, 7, 7})
		assert.Equal(t, 1.0, conf)
	})

	t.Run("jitter inside tolerance lowers confidence without zeroing it", func(t *testing.T) {
		// mean 30.33, allowed variance (30.33*0.2)^2 ≈ 36.8
		_, conf := c.Classify([]int{30, 31, 30})
		assert.Greater(t, conf, 0.9)
		assert.LessOrEqual(t, conf, 1.0)
	})

	t.Run("wild spread zeroes confidence", func(t *testing.T) {
		_, conf := c.Classify([]int{7, 60, 7, 60})
		assert.Zero(t, conf)
	})

	t.Run("all zero intervals score zero", func(t *testing.T) {
		freq, conf := c.Classify([]int{0, 0})
		assert.Equal(t, pattern.FrequencyIrregular, freq)
		assert.Zero(t, conf)
	})

	t.Run("confidence is rounded to two decimals", func(t *testing.T) {
		// 1 - (2/3)/36 = 0.98148..., rounded to 0.98
		_, conf := c.Classify([]int{29, 31, 30})
		assert.InDelta(t, 0.98, conf, 1e-9)
	})

	t.Run("wider tolerance forgives more jitter", func(t *testing.T) {
		strict := &pattern.Classifier{ToleranceFraction: 0.05}
		loose := &pattern.Classifier{ToleranceFraction: 0.5}

		intervals := []int{28, 32, 28, 32}
		_, strictConf := strict.Classify(intervals)
		_, looseConf := loose.Classify(intervals)

		assert.Less(t, strictConf, looseConf)
	})
}

func TestMeanInterval(t *testing.T) {
	assert.Zero(t, pattern.MeanInterval(nil))
	assert.Equal(t, 30.0, pattern.MeanInterval([]int{30}))
	assert.InDelta(t, 30.333, pattern.MeanInterval([]int{30, 31, 30}), 0.001)
}
