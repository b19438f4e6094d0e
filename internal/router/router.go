package router

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/tradSys/internal/domain"
	domainerrors "github.com/abdoElHodaky/tradSys/internal/domain/errors"
	"github.com/abdoElHodaky/tradSys/internal/observability/metrics"
)

// Router composes the slippage gate, rate limiter, broker translation,
// the injected (paper or live) broker and retry policy into a single
// Route operation. It keeps no record of submitted orders: GetOrderStatus
// and Cancel pass the order id to the broker on each call.
type Router struct {
	cfg     BrokerConfig
	broker  Broker
	limiter *RateLimiter
	retry   RetryPolicy
	logger  *zap.Logger
	metrics *metrics.Collectors
}

// New constructs a Router. cfg must already have passed Guards. A nil
// collectors disables metrics feeding.
func New(cfg BrokerConfig, broker Broker, retry RetryPolicy, logger *zap.Logger, collectors *metrics.Collectors) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:     cfg,
		broker:  broker,
		limiter: NewRateLimiter(cfg.RateLimitPerSecond),
		retry:   retry,
		logger:  logger.With(zap.String("component", "router")),
		metrics: collectors,
	}
}

// SlippageBps computes |limit-market|/market * 10^4.
func SlippageBps(limit, market float64) float64 {
	return math.Abs(limit-market) / market * 10000
}

// checkSlippage implements the route operation's first step.
func (r *Router) checkSlippage(order domain.Order, marketPrice *float64) error {
	if order.Type != domain.OrderTypeLimit || marketPrice == nil || order.LimitPrice == nil {
		return nil
	}
	market := *marketPrice
	limit := *order.LimitPrice

	if market <= 0 || limit <= 0 {
		return domainerrors.New(domainerrors.CodeRisk, "slippage check requires positive prices")
	}
	bps := SlippageBps(limit, market)
	if math.IsNaN(bps) || math.IsInf(bps, 0) {
		return domainerrors.New(domainerrors.CodeRisk, "slippage computation produced a non-finite result")
	}
	if bps > r.cfg.MaxSlippageBps {
		return domainerrors.New(domainerrors.CodeRisk, "slippage exceeds maximum").
			WithDetail("slippage_bps", bps).
			WithDetail("max_slippage_bps", r.cfg.MaxSlippageBps)
	}
	return nil
}

// Route executes the five-step route operation for order, with an
// optional current market price used only for the slippage gate.
func (r *Router) Route(ctx context.Context, order domain.Order, marketPrice *float64) (BrokerOrderResponse, error) {
	start := time.Now()
	if err := r.checkSlippage(order, marketPrice); err != nil {
		return BrokerOrderResponse{}, err
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return BrokerOrderResponse{}, domainerrors.Wrap(err, domainerrors.CodeNetwork, "rate limiter wait failed")
	}

	req := ToBrokerRequest(order)

	attempt := 0
	resp, err := RetryWithResult(ctx, r.retry, func() (BrokerOrderResponse, error) {
		if attempt > 0 {
			r.recordRetry(order.Symbol)
		}
		attempt++
		return r.broker.SubmitOrder(ctx, req)
	})
	if r.metrics != nil {
		r.metrics.ObserveRouteLatency(string(order.Symbol), start)
	}
	if err != nil {
		r.logger.Warn("order route failed",
			zap.String("symbol", string(order.Symbol)),
			zap.Error(err))
		return BrokerOrderResponse{}, err
	}
	r.recordRouted(order)
	return resp, nil
}

func (r *Router) recordRetry(symbol domain.Symbol) {
	if r.metrics == nil {
		return
	}
	r.metrics.RouteRetries.WithLabelValues(string(symbol)).Inc()
}

func (r *Router) recordRouted(order domain.Order) {
	if r.metrics == nil {
		return
	}
	r.metrics.OrdersRouted.WithLabelValues(string(order.Symbol), string(order.Side), string(order.Type)).Inc()
}

// GetOrderStatus acquires a rate-limiter token and queries order status.
func (r *Router) GetOrderStatus(ctx context.Context, id string) (BrokerOrderResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return BrokerOrderResponse{}, domainerrors.Wrap(err, domainerrors.CodeNetwork, "rate limiter wait failed")
	}
	return r.broker.GetOrder(ctx, id)
}

// Cancel acquires a rate-limiter token and cancels an order. Terminal
// statuses are never retried: the caller is responsible for not
// calling Cancel on an already-terminal order.
func (r *Router) Cancel(ctx context.Context, id string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeNetwork, "rate limiter wait failed")
	}
	return r.broker.CancelOrder(ctx, id)
}
