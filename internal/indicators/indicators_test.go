package indicators

import (
	"math"
	"testing"

	"github.com/markcheno/go-talib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMAMatchesArithmeticMean(t *testing.T) {
	sma := NewSMA(3)
	samples := []float64{10, 20, 30, 40}

	_, ok := sma.Update(samples[0])
	assert.False(t, ok)
	_, ok = sma.Update(samples[1])
	assert.False(t, ok)

	v, ok := sma.Update(samples[2])
	require.True(t, ok)
	assert.InDelta(t, 20.0, v, 1e-12)

	v, ok = sma.Update(samples[3])
	require.True(t, ok)
	assert.InDelta(t, 30.0, v, 1e-12)
}

func TestSMACrossCheckAgainstTalib(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	period := 5

	want := talib.Sma(prices, period)

	sma := NewSMA(period)
	var got []float64
	for _, p := range prices {
		v, ok := sma.Update(p)
		if ok {
			got = append(got, v)
		}
	}

	require.Equal(t, len(want)-period+1, len(got))
	for i, g := range got {
		assert.InDelta(t, want[i+period-1], g, 1e-9)
	}
}

func TestEMASeedsFromFirstSample(t *testing.T) {
	ema := NewEMA(9)
	v, ok := ema.Update(100)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	v2, ok := ema.Update(110)
	require.True(t, ok)
	alpha := 2.0 / 10.0
	assert.InDelta(t, alpha*110+(1-alpha)*100, v2, 1e-12)
}

func TestEMADeterministicGivenSeed(t *testing.T) {
	samples := []float64{10, 11, 9, 12, 13, 8, 14}

	e1 := NewEMA(5)
	e2 := NewEMA(5)
	for _, s := range samples {
		v1, _ := e1.Update(s)
		v2, _ := e2.Update(s)
		assert.Equal(t, v1, v2)
	}
}

func TestRSIBounded(t *testing.T) {
	rsi := NewRSI(14)
	prices := []float64{44, 44.3, 44.1, 44.4, 44.5, 43.9, 44.6, 45.1, 45.0, 44.8, 45.3, 45.6, 46.0, 46.5, 46.2}
	var last float64
	var ready bool
	for _, p := range prices {
		v, ok := rsi.Update(p)
		if ok {
			last = v
			ready = true
		}
	}
	require.True(t, ready)
	assert.GreaterOrEqual(t, last, 0.0)
	assert.LessOrEqual(t, last, 100.0)
}

func TestRSIAllGainsIsOneHundred(t *testing.T) {
	rsi := NewRSI(3)
	prices := []float64{10, 11, 12, 13, 14}
	var last float64
	for _, p := range prices {
		if v, ok := rsi.Update(p); ok {
			last = v
		}
	}
	assert.Equal(t, 100.0, last)
}

func TestMACDHistogramIsDifference(t *testing.T) {
	macd := NewMACD(3, 6, 4)
	prices := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	var reading MACDReading
	var ready bool
	for _, p := range prices {
		r, ok := macd.Update(p)
		if ok {
			reading = r
			ready = true
		}
	}
	require.True(t, ready)
	assert.InDelta(t, reading.MACD-reading.Signal, reading.Histogram, 1e-9)
}

func TestBollingerOrdering(t *testing.T) {
	bb := NewBollinger(5)
	prices := []float64{10, 12, 11, 13, 9, 14, 10}
	var last BollingerReading
	var ready bool
	for _, p := range prices {
		r, ok := bb.Update(p)
		if ok {
			last = r
			ready = true
		}
	}
	require.True(t, ready)
	assert.LessOrEqual(t, last.Lower, last.Middle)
	assert.LessOrEqual(t, last.Middle, last.Upper)
}

func TestATRNonNegative(t *testing.T) {
	atr := NewATR(3)
	bars := [][3]float64{
		{10, 8, 9},
		{11, 9, 10},
		{12, 9.5, 11},
		{13, 10, 12},
	}
	var last float64
	var ready bool
	for _, b := range bars {
		v, ok := atr.Update(b[0], b[1], b[2])
		if ok {
			last = v
			ready = true
		}
	}
	require.True(t, ready)
	assert.GreaterOrEqual(t, last, 0.0)
	assert.False(t, math.IsNaN(last))
}
