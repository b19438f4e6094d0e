// Package features assembles the fixed-length predictor-facing feature
// vector from the latest bars and an order-book snapshot. The layout
// is a frozen external contract (array, not map) so the predictor
// boundary never depends on map iteration order or key presence.
package features

// Index constants document the index<->meaning mapping for Vector. The
// first element is the schema version, the remaining 30 follow the
// order fixed by the external predictor contract.
const (
	FeatureSchemaVersion = iota
	FeatureClose
	FeatureOpen
	FeatureHigh
	FeatureLow
	FeatureRSI14
	FeatureMACD
	FeatureMACDSignal
	FeatureMACDHist
	FeatureEMA9
	FeatureEMA21
	FeatureEMA9MinusEMA21
	FeatureSMA50
	FeaturePctFromSMA50
	FeatureSMA200
	FeatureBBLower
	FeatureBBMiddle
	FeatureBBUpper
	FeatureBBPercentB
	FeatureVolume
	FeatureVolumeChangeRatio
	FeatureBestBid
	FeatureBestAsk
	FeatureMid
	FeatureSpread
	FeatureSpreadBps
	FeatureBidDepthTop5
	FeatureAskDepthTop5
	FeatureDepthImbalance
	FeatureLastLogReturn
	FeatureMomentum10

	vectorLen
)

// Vector is the canonical fixed-length feature array handed to the
// predictor boundary.
type Vector [vectorLen]float64

// CurrentSchemaVersion is stamped into every Vector's
// FeatureSchemaVersion slot.
const CurrentSchemaVersion = 1

// Bar is the minimal OHLCV shape Build needs; domain.Bar satisfies it
// via the adapter in adapter.go.
type Bar struct {
	Open, High, Low, Close, Volume float64
}

// BookSnapshot is the minimal order-book shape Build needs.
type BookSnapshot struct {
	BestBid, BestAsk     float64
	HasBid, HasAsk       bool
	BidDepthTop5         float64
	AskDepthTop5         float64
	DepthImbalance       float64
}

// Indicators carries the already-computed streaming indicator readings
// for the bar's close; a zero value with Warm=false for any given member
// signals the caller should apply the warm-up default instead of a
// real reading.
type Indicators struct {
	RSI14          float64
	RSI14Warm      bool
	MACD           float64
	MACDSignal     float64
	MACDHist       float64
	MACDWarm       bool
	EMA9           float64
	EMA9Warm       bool
	EMA21          float64
	EMA21Warm      bool
	SMA50          float64
	SMA50Warm      bool
	SMA200         float64
	SMA200Warm     bool
	BBLower        float64
	BBMiddle       float64
	BBUpper        float64
	BBPercentB     float64
	BBWarm         bool
	LastLogReturn  float64
	Momentum10     float64
}

// Build assembles a Vector from the latest bar, the previous bar's
// volume (for the volume-change ratio), the indicator readings computed
// over the bar's close, and an order-book snapshot. Every warm-up
// default is applied when the corresponding indicator has not yet
// filled its window.
func Build(bar Bar, prevVolume float64, ind Indicators, book BookSnapshot) Vector {
	var v Vector
	v[FeatureSchemaVersion] = CurrentSchemaVersion
	v[FeatureClose] = bar.Close
	v[FeatureOpen] = bar.Open
	v[FeatureHigh] = bar.High
	v[FeatureLow] = bar.Low

	if ind.RSI14Warm {
		v[FeatureRSI14] = ind.RSI14
	} else {
		v[FeatureRSI14] = 50
	}

	if ind.MACDWarm {
		v[FeatureMACD] = ind.MACD
		v[FeatureMACDSignal] = ind.MACDSignal
		v[FeatureMACDHist] = ind.MACDHist
	}

	if ind.EMA9Warm {
		v[FeatureEMA9] = ind.EMA9
	} else {
		v[FeatureEMA9] = bar.Close
	}
	if ind.EMA21Warm {
		v[FeatureEMA21] = ind.EMA21
	} else {
		v[FeatureEMA21] = bar.Close
	}
	v[FeatureEMA9MinusEMA21] = v[FeatureEMA9] - v[FeatureEMA21]

	if ind.SMA50Warm {
		v[FeatureSMA50] = ind.SMA50
	} else {
		v[FeatureSMA50] = bar.Close
	}
	if v[FeatureSMA50] != 0 {
		v[FeaturePctFromSMA50] = (bar.Close - v[FeatureSMA50]) / v[FeatureSMA50]
	}

	if ind.SMA200Warm {
		v[FeatureSMA200] = ind.SMA200
	} else {
		v[FeatureSMA200] = bar.Close
	}

	if ind.BBWarm {
		v[FeatureBBLower] = ind.BBLower
		v[FeatureBBMiddle] = ind.BBMiddle
		v[FeatureBBUpper] = ind.BBUpper
		v[FeatureBBPercentB] = ind.BBPercentB
	} else {
		v[FeatureBBLower] = bar.Close
		v[FeatureBBMiddle] = bar.Close
		v[FeatureBBUpper] = bar.Close
		v[FeatureBBPercentB] = 0.5
	}

	v[FeatureVolume] = bar.Volume
	if prevVolume > 0 {
		v[FeatureVolumeChangeRatio] = (bar.Volume - prevVolume) / prevVolume
	}

	if book.HasBid {
		v[FeatureBestBid] = book.BestBid
	}
	if book.HasAsk {
		v[FeatureBestAsk] = book.BestAsk
	}
	if book.HasBid && book.HasAsk {
		v[FeatureMid] = (book.BestBid + book.BestAsk) / 2
		v[FeatureSpread] = book.BestAsk - book.BestBid
		if v[FeatureMid] != 0 {
			v[FeatureSpreadBps] = v[FeatureSpread] / v[FeatureMid] * 10000
		}
	}
	v[FeatureBidDepthTop5] = book.BidDepthTop5
	v[FeatureAskDepthTop5] = book.AskDepthTop5
	v[FeatureDepthImbalance] = book.DepthImbalance

	v[FeatureLastLogReturn] = ind.LastLogReturn
	v[FeatureMomentum10] = ind.Momentum10

	return v
}
