package feed

import (
	"go.uber.org/zap"

	"github.com/abdoElHodaky/tradSys/internal/domain"
	"github.com/abdoElHodaky/tradSys/internal/messaging/bus"
)

// Publisher is the subset of *bus.Bus a BusSink needs, so tests can
// substitute a fake without standing up a real Bus.
type Publisher interface {
	Publish(topic domain.Topic, subTopic string, msg domain.Message) error
}

// BusSink adapts a Reader's decoded messages onto the market topic of
// the in-process PUB/SUB plane, one concrete sub-topic per symbol, the
// way downstream bar aggregation and feature assembly expect trades
// and bars to arrive.
type BusSink struct {
	bus    Publisher
	logger *zap.Logger
}

// NewBusSink constructs a BusSink publishing onto b.
func NewBusSink(b Publisher, logger *zap.Logger) *BusSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BusSink{bus: b, logger: logger.With(zap.String("component", "feed.bus_sink"))}
}

func (s *BusSink) publish(typ domain.MessageType, symbol domain.Symbol, payload any) {
	msg, err := domain.NewMessage(typ, domain.TopicMarket, payload)
	if err != nil {
		s.logger.Warn("failed to envelope feed message", zap.Error(err))
		return
	}
	if err := s.bus.Publish(domain.TopicMarket, string(symbol), msg); err != nil {
		s.logger.Warn("failed to publish feed message", zap.Error(err))
	}
}

// OnTrade publishes a TradeUpdate on market.<symbol>.
func (s *BusSink) OnTrade(t domain.Trade) {
	s.publish(domain.MessageTradeUpdate, t.Symbol, t)
}

// OnQuote publishes a QuoteUpdate on market.<symbol>.
func (s *BusSink) OnQuote(q domain.Quote) {
	s.publish(domain.MessageQuoteUpdate, q.Symbol, q)
}

// OnBar publishes a BarUpdate on market.<symbol>.
func (s *BusSink) OnBar(b domain.Bar) {
	s.publish(domain.MessageBarUpdate, b.Symbol, b)
}

var _ Sink = (*BusSink)(nil)
var _ Publisher = (*bus.Bus)(nil)
