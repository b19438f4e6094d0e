// Package feed implements the authenticated inbound market-data
// WebSocket connection: an auth/subscribe handshake followed by a
// sequential read loop, reconnecting with exponential backoff capped at
// 60s until the caller cancels the context.
package feed

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/tradSys/internal/domain"
	domainerrors "github.com/abdoElHodaky/tradSys/internal/domain/errors"
	"github.com/abdoElHodaky/tradSys/internal/observability/metrics"
)

// Sink receives decoded feed messages. Coroutine/callback control flow
// in the feed reader is modeled as a sequential loop with suspension at
// read(), not as callback chaining: Sink methods are invoked
// synchronously from the reader's single read loop.
type Sink interface {
	OnTrade(domain.Trade)
	OnQuote(domain.Quote)
	OnBar(domain.Bar)
}

// Config configures a Reader's connection, credentials and subscription
// set.
type Config struct {
	URL       string
	APIKey    string
	APISecret string

	Trades []string
	Quotes []string
	Bars   []string

	// ReadHeartbeat bounds how long the reader waits for a message
	// before treating the connection as dead (30s default).
	ReadHeartbeat time.Duration
	// ReconnectInitialDelay and ReconnectMaxDelay bound the
	// reconnection backoff: either a constant delay of 5s or more, or
	// exponential backoff capped at 60s, is an acceptable choice here;
	// this Reader picks exponential, doubling from
	// ReconnectInitialDelay up to ReconnectMaxDelay.
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReadHeartbeat <= 0 {
		c.ReadHeartbeat = 30 * time.Second
	}
	if c.ReconnectInitialDelay <= 0 {
		c.ReconnectInitialDelay = 5 * time.Second
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = 60 * time.Second
	}
	return c
}

// Reader owns the single feed WebSocket connection for a Config's
// symbol set, recovering disconnects locally by reconnection:
// feed-side disconnects are recovered locally, never surfaced as a
// fatal error.
type Reader struct {
	cfg     Config
	sink    Sink
	logger  *zap.Logger
	dialer  *websocket.Dialer
	metrics *metrics.Collectors
}

// NewReader constructs a Reader. A nil collectors disables metrics
// feeding.
func NewReader(cfg Config, sink Sink, logger *zap.Logger, collectors *metrics.Collectors) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		cfg:     cfg.withDefaults(),
		sink:    sink,
		logger:  logger.With(zap.String("component", "feed.reader")),
		dialer:  websocket.DefaultDialer,
		metrics: collectors,
	}
}

// Run connects, authenticates, subscribes and reads until ctx is
// cancelled. Reconnection is a restartable outer loop, not an
// exception filter: any handshake or read error ends runOnce, and Run
// waits out the current backoff before dialing again.
func (r *Reader) Run(ctx context.Context) error {
	delay := r.cfg.ReconnectInitialDelay
	resetDelay := func() { delay = r.cfg.ReconnectInitialDelay }

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := r.runOnce(ctx, resetDelay)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			r.logger.Warn("feed connection lost, reconnecting",
				zap.Error(err), zap.Duration("delay", delay))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > r.cfg.ReconnectMaxDelay {
			delay = r.cfg.ReconnectMaxDelay
		}
	}
}

func (r *Reader) runOnce(ctx context.Context, connected func()) error {
	conn, _, err := r.dialer.DialContext(ctx, r.cfg.URL, nil)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeWebSocket, "dial feed websocket")
	}
	defer conn.Close()

	if err := r.handshake(conn); err != nil {
		return err
	}
	connected()

	return r.readLoop(ctx, conn)
}

type authAction struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type subscribeAction struct {
	Action string   `json:"action"`
	Trades []string `json:"trades"`
	Quotes []string `json:"quotes"`
	Bars   []string `json:"bars"`
}

func (r *Reader) handshake(conn *websocket.Conn) error {
	auth := authAction{Action: "auth", Key: r.cfg.APIKey, Secret: r.cfg.APISecret}
	if err := conn.WriteJSON(auth); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeWebSocket, "send feed auth")
	}

	sub := subscribeAction{Action: "subscribe", Trades: r.cfg.Trades, Quotes: r.cfg.Quotes, Bars: r.cfg.Bars}
	if err := conn.WriteJSON(sub); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeWebSocket, "send feed subscribe")
	}
	return nil
}

func (r *Reader) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := conn.SetReadDeadline(time.Now().Add(r.cfg.ReadHeartbeat)); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeWebSocket, "set read deadline")
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeWebSocket, "read feed message")
		}

		var frames []wireMessage
		if err := json.Unmarshal(data, &frames); err != nil {
			r.logger.Warn("dropping undecodable feed frame", zap.Error(err))
			r.recordRejected("parse")
			continue
		}
		for _, f := range frames {
			r.dispatch(f)
		}
	}
}

// wireMessage is the superset of fields carried by the three
// discriminated message shapes (trade "t", quote "q", bar "b"). Unknown
// discriminators are ignored, never rejected.
type wireMessage struct {
	Type   string      `json:"T"`
	Symbol string      `json:"S"`
	Time   string      `json:"t"`
	Price  float64     `json:"p"`
	Size   float64     `json:"s"`
	ID     json.Number `json:"i"`

	BidPrice float64 `json:"bp"`
	BidSize  float64 `json:"bs"`
	AskPrice float64 `json:"ap"`
	AskSize  float64 `json:"as"`

	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && p > 0
}

// dispatch routes one decoded frame to the Sink, rejecting bad prices
// at ingestion rather than forwarding them downstream (the feed
// adapter's responsibility, not the order book's).
func (r *Reader) dispatch(f wireMessage) {
	switch f.Type {
	case "t":
		if !validPrice(f.Price) {
			r.recordRejected("invalid_trade_price")
			return
		}
		ts, err := time.Parse(time.RFC3339Nano, f.Time)
		if err != nil {
			r.recordRejected("invalid_timestamp")
			return
		}
		r.sink.OnTrade(domain.Trade{
			Symbol:       domain.Symbol(f.Symbol),
			Price:        f.Price,
			Quantity:     f.Size,
			Timestamp:    ts,
			ExchangeTrID: f.ID.String(),
		})

	case "q":
		if !validPrice(f.BidPrice) || !validPrice(f.AskPrice) {
			r.recordRejected("invalid_quote_price")
			return
		}
		ts, err := time.Parse(time.RFC3339Nano, f.Time)
		if err != nil {
			r.recordRejected("invalid_timestamp")
			return
		}
		r.sink.OnQuote(domain.Quote{
			Symbol:    domain.Symbol(f.Symbol),
			BidPrice:  f.BidPrice,
			BidSize:   f.BidSize,
			AskPrice:  f.AskPrice,
			AskSize:   f.AskSize,
			Timestamp: ts,
		})

	case "b":
		if !validPrice(f.Open) || !validPrice(f.High) || !validPrice(f.Low) || !validPrice(f.Close) {
			r.recordRejected("invalid_bar_price")
			return
		}
		ts, err := time.Parse(time.RFC3339Nano, f.Time)
		if err != nil {
			r.recordRejected("invalid_timestamp")
			return
		}
		r.sink.OnBar(domain.Bar{
			Symbol:      domain.Symbol(f.Symbol),
			Open:        f.Open,
			High:        f.High,
			Low:         f.Low,
			Close:       f.Close,
			Volume:      f.Volume,
			WindowStart: ts,
		})

	default:
		// Unknown discriminators are ignored, not an error.
	}
}

func (r *Reader) recordRejected(reason string) {
	if r.metrics == nil {
		return
	}
	r.metrics.FeedMessagesRejected.WithLabelValues(reason).Inc()
}
