package main

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/tradSys/internal/domain"
	"github.com/abdoElHodaky/tradSys/internal/features"
	"github.com/abdoElHodaky/tradSys/internal/indicators"
	"github.com/abdoElHodaky/tradSys/internal/indicators/batch"
	"github.com/abdoElHodaky/tradSys/internal/messaging/bus"
	"github.com/abdoElHodaky/tradSys/internal/orderbook"
)

// closeHistoryLimit bounds the per-symbol close buffer used for the
// batch log-return/momentum features; 210 covers the widest indicator
// window (SMA200) with headroom for the momentum lookback.
const closeHistoryLimit = 210

// symbolIndicators holds one streaming indicator set and close-price
// history per symbol.
type symbolIndicators struct {
	closes []float64
	volume float64

	rsi14  *indicators.RSI
	macd   *indicators.MACD
	ema9   *indicators.EMA
	ema21  *indicators.EMA
	sma50  *indicators.SMA
	sma200 *indicators.SMA
	boll   *indicators.Bollinger
}

func newSymbolIndicators() *symbolIndicators {
	return &symbolIndicators{
		rsi14:  indicators.NewRSI(14),
		macd:   indicators.NewMACD(12, 26, 9),
		ema9:   indicators.NewEMA(9),
		ema21:  indicators.NewEMA(21),
		sma50:  indicators.NewSMA(50),
		sma200: indicators.NewSMA(200),
		boll:   indicators.NewBollinger(20),
	}
}

// signalEngine assembles the C5 feature vector for every completed bar
// and publishes it on the signal topic for the external predictor to
// annotate with an Action/Confidence before it reaches the risk gate.
type signalEngine struct {
	books *orderbook.Manager
	bus   *bus.Bus

	mu    sync.Mutex
	state map[domain.Symbol]*symbolIndicators

	logger *zap.Logger
}

func newSignalEngine(books *orderbook.Manager, b *bus.Bus, logger *zap.Logger) *signalEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &signalEngine{
		books:  books,
		bus:    b,
		state:  make(map[domain.Symbol]*symbolIndicators),
		logger: logger.With(zap.String("component", "signal_engine")),
	}
}

// OnBar computes every streaming and batch indicator for the bar's
// close, assembles the fixed-length feature vector, and publishes a
// Signal carrying it. Action defaults to hold and Confidence to zero;
// the external predictor is the one collaborator entitled to overwrite
// them before the signal reaches the risk gate.
func (s *signalEngine) OnBar(bar domain.Bar) {
	s.mu.Lock()
	si, ok := s.state[bar.Symbol]
	if !ok {
		si = newSymbolIndicators()
		s.state[bar.Symbol] = si
	}

	rsi, rsiWarm := si.rsi14.Update(bar.Close)
	macdReading, macdWarm := si.macd.Update(bar.Close)
	ema9, _ := si.ema9.Update(bar.Close)
	ema21, _ := si.ema21.Update(bar.Close)
	sma50, sma50Warm := si.sma50.Update(bar.Close)
	sma200, sma200Warm := si.sma200.Update(bar.Close)
	boll, bollWarm := si.boll.Update(bar.Close)

	si.closes = append(si.closes, bar.Close)
	if len(si.closes) > closeHistoryLimit {
		si.closes = si.closes[len(si.closes)-closeHistoryLimit:]
	}

	var lastLogReturn, momentum10 float64
	if lr := batch.LogReturns(si.closes); len(lr) > 0 {
		lastLogReturn = lr[len(lr)-1]
	}
	if mo := batch.Momentum(si.closes, 10); len(mo) > 0 {
		momentum10 = mo[len(mo)-1]
	}

	ind := features.Indicators{
		RSI14:         rsi,
		RSI14Warm:     rsiWarm,
		MACD:          macdReading.MACD,
		MACDSignal:    macdReading.Signal,
		MACDHist:      macdReading.Histogram,
		MACDWarm:      macdWarm,
		EMA9:          ema9,
		EMA9Warm:      true,
		EMA21:         ema21,
		EMA21Warm:     true,
		SMA50:         sma50,
		SMA50Warm:     sma50Warm,
		SMA200:        sma200,
		SMA200Warm:    sma200Warm,
		BBLower:       boll.Lower,
		BBMiddle:      boll.Middle,
		BBUpper:       boll.Upper,
		BBPercentB:    boll.PercentB,
		BBWarm:        bollWarm,
		LastLogReturn: lastLogReturn,
		Momentum10:    momentum10,
	}
	prevVolume := si.volume
	si.volume = bar.Volume
	s.mu.Unlock()

	book := features.BookSnapshotFrom(s.books.Engine(orderbook.Symbol(bar.Symbol)))
	vec := features.Build(features.BarFrom(bar), prevVolume, ind, book)

	sig := domain.Signal{
		Symbol:        bar.Symbol,
		Action:        domain.ActionHold,
		Confidence:    0,
		FeatureVector: vec[:],
		SchemaVersion: features.CurrentSchemaVersion,
		Timestamp:     time.Now(),
	}
	msg, err := domain.NewMessage(domain.MessageSignalGenerated, domain.TopicSignal, sig)
	if err != nil {
		s.logger.Warn("failed to envelope signal", zap.Error(err))
		return
	}
	if err := s.bus.Publish(domain.TopicSignal, string(bar.Symbol), msg); err != nil {
		s.logger.Warn("failed to publish signal", zap.Error(err))
	}
}
