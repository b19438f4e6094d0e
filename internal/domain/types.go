// Package domain defines the core trading types shared by every
// component: the order book, bars, orders, positions and signals that
// flow between the market-data, risk and execution stages.
package domain

import (
	"time"

	domainerrors "github.com/abdoElHodaky/tradSys/internal/domain/errors"
)

// Symbol is an opaque instrument identifier. Equality and hashing are on
// the exact string, so "BTC-USD" and "btc-usd" are different symbols.
type Symbol string

// Side is the direction of an order or a resting book level.
type Side string

const (
	SideBuy Side = "buy"
	SideAsk Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideAsk
	}
	return SideBuy
}

// OrderType enumerates the order types the router understands.
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stop_limit"
)

// OrderStatus is a node in the order lifecycle DAG:
//
//	Pending -> {PartiallyFilled, Filled, Cancelled, Rejected}
//	PartiallyFilled -> {Filled, Cancelled}
//
// Filled, Cancelled and Rejected are terminal: no further transition is
// valid once an order reaches one of them.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// IsTerminal reports whether no further status transition is valid.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusRejected
}

// CanTransitionTo checks the allowed order-status transition graph.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case OrderStatusPending:
		switch next {
		case OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
			return true
		}
	case OrderStatusPartiallyFilled:
		switch next {
		case OrderStatusFilled, OrderStatusCancelled:
			return true
		}
	}
	return false
}

// TimeInForce mirrors the broker contract; the router always submits GTC.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
	TimeInForceDAY TimeInForce = "DAY"
)

// Level is a single price level of resting depth.
type Level struct {
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderBook is an immutable top-of-book snapshot suitable for broadcast.
// The mutable ladder state lives in internal/orderbook; this is the
// cross-component view carried in messages.
type OrderBook struct {
	Symbol    Symbol    `json:"symbol"`
	Bids      []Level   `json:"bids"`
	Asks      []Level   `json:"asks"`
	Timestamp time.Time `json:"timestamp"`
	Sequence  uint64    `json:"sequence"`
}

// BestBid returns the highest resting bid, or false if the book is empty.
func (b OrderBook) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest resting ask, or false if the book is empty.
func (b OrderBook) BestAsk() (Level, bool) {
	if len(b.Asks) == 0 {
		return Level{}, false
	}
	return b.Asks[0], true
}

// Trade is a single executed print from the feed.
type Trade struct {
	Symbol       Symbol    `json:"symbol"`
	Price        float64   `json:"price"`
	Quantity     float64   `json:"quantity"`
	AggressSide  Side      `json:"aggressor_side"`
	Timestamp    time.Time `json:"timestamp"`
	ExchangeTrID string    `json:"exchange_trade_id"`
}

// Quote is a top-of-book bid/ask print from the feed.
type Quote struct {
	Symbol    Symbol    `json:"symbol"`
	BidPrice  float64   `json:"bid_price"`
	BidSize   float64   `json:"bid_size"`
	AskPrice  float64   `json:"ask_price"`
	AskSize   float64   `json:"ask_size"`
	Timestamp time.Time `json:"timestamp"`
}

// Bar is one OHLCV bucket for a symbol at a given window length.
type Bar struct {
	Symbol      Symbol    `json:"symbol"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	WindowStart time.Time `json:"window_start"`
	TradeCount  int64     `json:"trade_count"`
}

// Order is a trading order with all fields required to validate and
// route it. Optional prices are pointers so their absence is explicit.
type Order struct {
	ID               string      `json:"id"`
	ClientID         string      `json:"client_id"`
	Symbol           Symbol      `json:"symbol"`
	Side             Side        `json:"side"`
	Type             OrderType   `json:"type"`
	Quantity         float64     `json:"quantity"`
	LimitPrice       *float64    `json:"limit_price,omitempty"`
	StopPrice        *float64    `json:"stop_price,omitempty"`
	Status           OrderStatus `json:"status"`
	FilledQuantity   float64     `json:"filled_quantity"`
	AverageFillPrice *float64    `json:"average_fill_price,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	// Metadata carries broker-side extension fields without widening the
	// struct for every integration.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks the shape invariants: limit/stop-limit orders
// require a limit price, stop/stop-limit orders require a stop price,
// and filled quantity never exceeds the order quantity.
func (o *Order) Validate() error {
	switch o.Type {
	case OrderTypeLimit, OrderTypeStopLimit:
		if o.LimitPrice == nil {
			return domainerrors.New(domainerrors.CodeOrderValidation, "limit order requires a limit price").
				WithDetail("order_id", o.ID)
		}
	}
	switch o.Type {
	case OrderTypeStop, OrderTypeStopLimit:
		if o.StopPrice == nil {
			return domainerrors.New(domainerrors.CodeOrderValidation, "stop order requires a stop price").
				WithDetail("order_id", o.ID)
		}
	}
	if o.FilledQuantity < 0 || o.FilledQuantity > o.Quantity {
		return domainerrors.New(domainerrors.CodeOrderValidation, "filled quantity out of range").
			WithDetail("order_id", o.ID).
			WithDetail("filled", o.FilledQuantity).
			WithDetail("quantity", o.Quantity)
	}
	return nil
}

// Position is a user's live exposure in one symbol. A position with
// zero quantity is destroyed by its owner (the risk kernel); a reversal
// (a sell through zero) creates a fresh opposite-side position rather
// than carrying a signed quantity across the flip.
type Position struct {
	Symbol        Symbol    `json:"symbol"`
	Side          Side      `json:"side"`
	Quantity      float64   `json:"quantity"`
	EntryPrice    float64   `json:"entry_price"`
	CurrentPrice  float64   `json:"current_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	RealizedPnL   float64   `json:"realized_pnl"`
	OpenedAt      time.Time `json:"opened_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Notional is quantity times current price, used by the risk gates.
func (p Position) Notional() float64 {
	return p.Quantity * p.CurrentPrice
}

// Action is the directional recommendation carried by a Signal.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Signal is the output of the feature engine / external predictor pair,
// carried into the risk gate over the signal topic.
type Signal struct {
	Symbol        Symbol    `json:"symbol"`
	Action        Action    `json:"action"`
	Confidence    float64   `json:"confidence"`
	FeatureVector []float64 `json:"feature_vector"`
	SchemaVersion int       `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
}
