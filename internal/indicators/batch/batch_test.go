package batch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogReturnsVectorizedMatchesScalar(t *testing.T) {
	prices := make([]float64, 0, 37)
	p := 100.0
	for i := 0; i < 37; i++ {
		p *= 1 + 0.001*float64(i%7-3)
		prices = append(prices, p)
	}

	vec := LogReturns(prices)
	scalar := LogReturnsScalar(prices)
	require.Equal(t, len(scalar), len(vec))
	for i := range vec {
		assert.InDelta(t, scalar[i], vec[i], 1e-12)
	}
}

func TestMomentumVectorizedMatchesScalar(t *testing.T) {
	prices := []float64{10, 11, 12, 9, 14, 20, 8, 13, 17, 19, 21, 5, 6, 30}
	for _, period := range []int{1, 3, 4, 10} {
		vec := Momentum(prices, period)
		scalar := MomentumScalar(prices, period)
		require.Equal(t, len(scalar), len(vec))
		for i := range vec {
			assert.InDelta(t, scalar[i], vec[i], 1e-12)
		}
	}
}

func TestLogReturnsShortInputIsNil(t *testing.T) {
	assert.Nil(t, LogReturns(nil))
	assert.Nil(t, LogReturns([]float64{1}))
}

func TestMomentumInvalidPeriod(t *testing.T) {
	assert.Nil(t, Momentum([]float64{1, 2, 3}, 0))
	assert.Nil(t, Momentum([]float64{1, 2, 3}, 10))
}

func TestSummarize(t *testing.T) {
	returns := LogReturns([]float64{100, 101, 99, 102, 98})
	s := Summarize(returns)
	assert.False(t, math.IsNaN(s.Mean))
	assert.GreaterOrEqual(t, s.StdDev, 0.0)
}
