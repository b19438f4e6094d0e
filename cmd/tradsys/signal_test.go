package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/tradSys/internal/domain"
	"github.com/abdoElHodaky/tradSys/internal/features"
	"github.com/abdoElHodaky/tradSys/internal/messaging/bus"
	"github.com/abdoElHodaky/tradSys/internal/orderbook"
)

func bar(symbol domain.Symbol, close float64, at time.Time) domain.Bar {
	return domain.Bar{
		Symbol:      symbol,
		WindowStart: at,
		Open:        close,
		High:        close,
		Low:         close,
		Close:       close,
		Volume:      100,
		TradeCount:  1,
	}
}

func TestSignalEngineOnBarPublishesHoldBeforeWarmup(t *testing.T) {
	books := orderbook.NewManager(nil)
	b := bus.New(bus.WireFormatJSON, nil, nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := b.Subscribe(ctx, "signal")
	require.NoError(t, err)

	engine := newSignalEngine(books, b, nil)
	base := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)
	engine.OnBar(bar("AAPL", 100, base))

	select {
	case msg := <-sub:
		require.Equal(t, domain.MessageSignalGenerated, msg.Type)
		var sig domain.Signal
		require.NoError(t, msg.Decode(&sig))
		assert.Equal(t, domain.ActionHold, sig.Action)
		assert.Equal(t, 0.0, sig.Confidence)
		assert.Equal(t, features.CurrentSchemaVersion, sig.SchemaVersion)
		assert.Len(t, sig.FeatureVector, len(features.Vector{}))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signal")
	}
}

func TestSignalEngineAccumulatesCloseHistoryPerSymbol(t *testing.T) {
	books := orderbook.NewManager(nil)
	b := bus.New(bus.WireFormatJSON, nil, nil)
	defer b.Close()

	engine := newSignalEngine(books, b, nil)
	base := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)

	for i := 0; i < closeHistoryLimit+20; i++ {
		engine.OnBar(bar("AAPL", 100+float64(i), base.Add(time.Duration(i)*time.Minute)))
	}

	si := engine.state["AAPL"]
	require.NotNil(t, si)
	assert.LessOrEqual(t, len(si.closes), closeHistoryLimit)
}

func TestSignalEngineTracksSeparateStatePerSymbol(t *testing.T) {
	books := orderbook.NewManager(nil)
	b := bus.New(bus.WireFormatJSON, nil, nil)
	defer b.Close()

	engine := newSignalEngine(books, b, nil)
	base := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)

	engine.OnBar(bar("AAPL", 100, base))
	engine.OnBar(bar("MSFT", 200, base))

	assert.Len(t, engine.state, 2)
	assert.NotSame(t, engine.state["AAPL"], engine.state["MSFT"])
}
