// Command tradsys wires the core trading components into a single
// process: the market-data feed publishes onto the in-process bus, an
// order-book manager and bar aggregator consume it, the risk kernel
// gates every order request, and the execution router submits accepted
// orders to the configured broker. Process supervision beyond this
// wiring (health/ready/metrics HTTP serving, CLI subcommands) is an
// external collaborator's responsibility, not this binary's.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/tradSys/internal/bars"
	"github.com/abdoElHodaky/tradSys/internal/config"
	"github.com/abdoElHodaky/tradSys/internal/domain"
	"github.com/abdoElHodaky/tradSys/internal/feed"
	"github.com/abdoElHodaky/tradSys/internal/messaging/bus"
	"github.com/abdoElHodaky/tradSys/internal/observability"
	"github.com/abdoElHodaky/tradSys/internal/observability/metrics"
	"github.com/abdoElHodaky/tradSys/internal/orderbook"
	"github.com/abdoElHodaky/tradSys/internal/risk/kernel"
	"github.com/abdoElHodaky/tradSys/internal/router"
)

func main() {
	configPath := flag.String("config", "config/tradsys.json", "path to the JSON configuration file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	riskCfg := kernel.Config(cfg.Risk)
	if err := riskCfg.Validate(); err != nil {
		logger.Fatal("invalid risk configuration", zap.Error(err))
	}

	brokerCfg, err := router.Guards(router.BrokerConfig{
		PaperTrading:       cfg.Execution.PaperTrading,
		BaseURL:            cfg.Execution.BaseURL,
		APIKeyID:           cfg.Execution.APIKeyID,
		APISecretKey:       cfg.Execution.APISecretKey,
		RateLimitPerSecond: cfg.Execution.RateLimitPerSecond,
		MaxSlippageBps:     cfg.Execution.MaxSlippageBps,
	})
	if err != nil {
		logger.Fatal("invalid execution configuration", zap.Error(err))
	}

	collectors := metrics.New()

	store, err := observability.Open(cfg.Metadata.ObservabilityDBPath, logger, collectors)
	if err != nil {
		logger.Fatal("failed to open observability store", zap.Error(err))
	}
	defer store.Close()

	msgBus := bus.New(bus.WireFormatJSON, logger, collectors)

	books := orderbook.NewManager(logger)

	windows := cfg.MarketData.BarWindows
	if len(windows) == 0 {
		windows = []time.Duration{time.Minute, 5 * time.Minute}
	}
	barSink := barDropSink{store: store}
	barAgg := bars.NewAggregator(windows, barSink, logger, collectors)

	var broker router.Broker
	if brokerCfg.PaperTrading {
		broker = router.NewPaperBroker()
	} else {
		broker = router.NewHTTPBroker(brokerCfg)
	}
	retry := router.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Execution.RetryMaxAttempts
	if d := cfg.Execution.RetryInitialDelayMs; d > 0 {
		retry.InitialDelay = time.Duration(d) * time.Millisecond
	}
	if d := cfg.Execution.RetryMaxDelayMs; d > 0 {
		retry.MaxDelay = time.Duration(d) * time.Millisecond
	}
	if m := cfg.Execution.RetryMultiplier; m > 0 {
		retry.Multiplier = m
	}
	exec := router.New(brokerCfg, broker, retry, logger, collectors)

	riskKernel := kernel.NewKernel(riskCfg, logger, collectors)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := feed.NewBusSink(msgBus, logger)
	reader := feed.NewReader(feed.Config{
		URL:                   cfg.MarketData.URL,
		APIKey:                cfg.Execution.APIKeyID,
		APISecret:             cfg.Execution.APISecretKey,
		Trades:                cfg.MarketData.Trades,
		Quotes:                cfg.MarketData.Quotes,
		Bars:                  cfg.MarketData.Bars,
		ReadHeartbeat:         cfg.MarketData.ReadHeartbeat,
		ReconnectInitialDelay: cfg.MarketData.ReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.MarketData.ReconnectMaxDelay,
	}, sink, logger, collectors)

	signals := newSignalEngine(books, msgBus, logger)
	market := consumer{books: books, bars: barAgg, signals: signals, logger: logger}
	go market.run(ctx, msgBus)

	orders := orderGate{kernel: riskKernel, router: exec, bus: msgBus, logger: logger}
	go orders.run(ctx, msgBus)

	go func() {
		if err := reader.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("feed reader stopped", zap.Error(err))
		}
	}()

	logger.Info("tradsys engine started",
		zap.String("deployment", cfg.Metadata.DeploymentName),
		zap.Bool("paper_trading", brokerCfg.PaperTrading),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown requested, draining in-flight work")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	for _, b := range barAgg.Flush() {
		candle := observability.Candle{
			Timestamp:  b.WindowStart,
			Symbol:     string(b.Symbol),
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
			TradeCount: b.TradeCount,
		}
		if err := store.InsertCandle(shutdownCtx, candle); err != nil {
			logger.Warn("failed to persist flushed bar", zap.Error(err))
		}
	}
	cancel()
	logger.Info("tradsys engine stopped")
}

// consumer applies every market message to the order-book manager and
// bar aggregator; it is the single task, shared by every symbol, that
// owns their mutation.
type consumer struct {
	books   *orderbook.Manager
	bars    *bars.Aggregator
	signals *signalEngine
	logger  *zap.Logger
}

func (c consumer) run(ctx context.Context, b *bus.Bus) {
	ch, err := b.Subscribe(ctx, string(domain.TopicMarket))
	if err != nil {
		c.logger.Error("failed to subscribe to market topic", zap.Error(err))
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			c.apply(msg)
		}
	}
}

func (c consumer) apply(msg domain.Message) {
	switch msg.Type {
	case domain.MessageTradeUpdate:
		var t domain.Trade
		if err := msg.Decode(&t); err != nil {
			c.logger.Warn("failed to decode trade update", zap.Error(err))
			return
		}
		emitted := c.bars.OnTrade(bars.Trade{Symbol: t.Symbol, Price: t.Price, Quantity: t.Quantity, Timestamp: t.Timestamp})
		for _, bar := range emitted {
			c.signals.OnBar(bar)
		}
	case domain.MessageQuoteUpdate:
		var q domain.Quote
		if err := msg.Decode(&q); err != nil {
			c.logger.Warn("failed to decode quote update", zap.Error(err))
			return
		}
		c.books.UpdateBid(orderbook.Symbol(q.Symbol), q.BidPrice, q.BidSize, q.Timestamp)
		c.books.UpdateAsk(orderbook.Symbol(q.Symbol), q.AskPrice, q.AskSize, q.Timestamp)
	}
}

// orderGate pins the risk-check and route steps into a single chain
// per incoming RiskCheckRequest, preserving causal order: a request is
// gated by the kernel before the router ever sees it.
type orderGate struct {
	kernel *kernel.Kernel
	router *router.Router
	bus    *bus.Bus
	logger *zap.Logger
}

func (g orderGate) run(ctx context.Context, b *bus.Bus) {
	ch, err := b.Subscribe(ctx, string(domain.TopicRisk))
	if err != nil {
		g.logger.Error("failed to subscribe to risk topic", zap.Error(err))
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			g.apply(ctx, msg)
		}
	}
}

func (g orderGate) apply(ctx context.Context, msg domain.Message) {
	if msg.Type != domain.MessageRiskCheckRequest {
		return
	}
	var req domain.RiskCheckRequest
	if err := msg.Decode(&req); err != nil {
		g.logger.Warn("failed to decode risk check request", zap.Error(err))
		return
	}

	result := domain.RiskCheckResult{OrderID: req.Order.ID, Allowed: true}
	if err := g.kernel.CheckOrder(req.Order, req.MarketPrice); err != nil {
		result.Allowed = false
		result.Reason = err.Error()
	}
	if resultMsg, err := domain.NewMessage(domain.MessageRiskCheckResult, domain.TopicRisk, result); err == nil {
		_ = g.bus.Publish(domain.TopicRisk, string(req.Order.Symbol), resultMsg)
	}
	if !result.Allowed {
		return
	}

	resp, err := g.router.Route(ctx, req.Order, &req.MarketPrice)
	if err != nil {
		g.logger.Warn("order routing failed", zap.String("order_id", req.Order.ID), zap.Error(err))
		return
	}
	if respMsg, err := domain.NewMessage(domain.MessageOrderResponse, domain.TopicOrder, resp); err == nil {
		_ = g.bus.Publish(domain.TopicOrder, string(req.Order.Symbol), respMsg)
	}

	if resp.Status != string(domain.OrderStatusFilled) || resp.FilledQty <= 0 {
		return
	}
	fillPrice := req.MarketPrice
	if resp.FilledAvgPrice != nil {
		if parsed, err := strconv.ParseFloat(*resp.FilledAvgPrice, 64); err == nil {
			fillPrice = parsed
		}
	}
	position := g.kernel.RecordFill(req.Order.Symbol, req.Order.Side, resp.FilledQty, fillPrice)
	if posMsg, err := domain.NewMessage(domain.MessagePositionUpdate, domain.TopicPosition, position); err == nil {
		_ = g.bus.Publish(domain.TopicPosition, string(req.Order.Symbol), posMsg)
	}
}

// barDropSink persists a dropped-trade event to the observability
// sink; out-of-order trades that fall outside the current window are
// counted there rather than silently discarded.
type barDropSink struct {
	store *observability.Store
}

func (s barDropSink) TradeDropped(symbol domain.Symbol, window time.Duration, trade bars.Trade) {
	_ = s.store.LogEvent(context.Background(), "bar_trade_dropped", observability.SeverityWarning,
		"trade arrived before the current window and was dropped",
		map[string]any{
			"symbol": string(symbol),
			"window": window.String(),
			"price":  trade.Price,
		})
}
