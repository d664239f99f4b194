package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		target float64
		want   int
	}{
		{"perfect stop", 2.13, 2.13, 1000},
		{"close stop", 2.10, 2.13, 970},
		{"overshoot", 2.20, 2.13, 930},
		{"far miss floors at zero", 4.50, 2.13, 0},
		{"exactly one under", 3.13, 2.13, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.value, tt.target))
		})
	}
}

func TestScoreNeverNegative(t *testing.T) {
	for v := 1.0; v <= 10.0; v += 0.37 {
		s := Score(v, 1.5)
		assert.GreaterOrEqual(t, s, 0)
		assert.LessOrEqual(t, s, MaxScore)
	}
}

func TestDiffIsSymmetric(t *testing.T) {
	assert.InDelta(t, 0.03, Diff(2.10, 2.13), 1e-9)
	assert.InDelta(t, 0.03, Diff(2.16, 2.13), 1e-9)
	assert.Equal(t, Diff(1.5, 2.0), Diff(2.0, 1.5))
}

func TestRoundDiff(t *testing.T) {
	assert.Equal(t, 0.03, RoundDiff(0.030000000000000027))
	assert.Equal(t, 0.1235, RoundDiff(0.12346))
	assert.Equal(t, 0.0, RoundDiff(0.00004))
}
