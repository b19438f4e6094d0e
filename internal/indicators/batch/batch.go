// Package batch implements the SIMD-friendly batch return/momentum
// helpers: unlike the streaming kernels in internal/indicators,
// these operate on a contiguous price array and are meant to run over
// an entire bar history at once (feature backfill, warm-start).
//
// Each unrolled helper has a scalar reference (LogReturnsScalar,
// MomentumScalar) that the tests compare against element by element;
// gonum.org/v1/gonum/stat backs Summarize.
package batch

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// lanes is the SIMD-style unrolling width: four independent
// accumulators processed per loop iteration, vectorizing across four
// lanes by hand since Go has no portable SIMD intrinsic. This is
// expressed as manual 4-wide loop unrolling, which the compiler can
// autovectorize on amd64/arm64.
const lanes = 4

// LogReturns computes log(p[i]/p[i-1]) for i in [1, len(prices)). The
// result has one fewer element than prices.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)

	n := len(out)
	lanesEnd := n - n%lanes
	i := 0
	for ; i < lanesEnd; i += lanes {
		out[i] = math.Log(prices[i+1] / prices[i])
		out[i+1] = math.Log(prices[i+2] / prices[i+1])
		out[i+2] = math.Log(prices[i+3] / prices[i+2])
		out[i+3] = math.Log(prices[i+4] / prices[i+3])
	}
	for ; i < n; i++ {
		out[i] = math.Log(prices[i+1] / prices[i])
	}
	return out
}

// LogReturnsScalar is the unvectorized reference implementation used to
// cross-check LogReturns in tests; both must agree within 1e-12 per
// lane.
func LogReturnsScalar(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := 0; i < len(out); i++ {
		out[i] = math.Log(prices[i+1] / prices[i])
	}
	return out
}

// Momentum computes p[i] - p[i-period] for i in [period, len(prices)).
func Momentum(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) <= period {
		return nil
	}
	n := len(prices) - period
	out := make([]float64, n)

	lanesEnd := n - n%lanes
	i := 0
	for ; i < lanesEnd; i += lanes {
		out[i] = prices[i+period] - prices[i]
		out[i+1] = prices[i+1+period] - prices[i+1]
		out[i+2] = prices[i+2+period] - prices[i+2]
		out[i+3] = prices[i+3+period] - prices[i+3]
	}
	for ; i < n; i++ {
		out[i] = prices[i+period] - prices[i]
	}
	return out
}

// MomentumScalar is the unvectorized reference for Momentum.
func MomentumScalar(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) <= period {
		return nil
	}
	out := make([]float64, len(prices)-period)
	for i := range out {
		out[i] = prices[i+period] - prices[i]
	}
	return out
}

// ReturnStats summarizes a log-return series using gonum/stat, the
// statistics a mean-reversion signal would use to compute a z-score.
type ReturnStats struct {
	Mean   float64
	StdDev float64
}

// Summarize computes the population mean/stddev of a return series.
func Summarize(returns []float64) ReturnStats {
	if len(returns) == 0 {
		return ReturnStats{}
	}
	mean, stdDev := stat.MeanStdDev(returns, nil)
	return ReturnStats{Mean: mean, StdDev: stdDev}
}
