package domain

import (
	"encoding/json"
	"time"
)

// Topic is one of the six PUB/SUB topic prefixes
type Topic string

const (
	TopicMarket Topic = "market"
	TopicSignal Topic = "signal"
	TopicOrder  Topic = "order"
	TopicPosition Topic = "position"
	TopicRisk   Topic = "risk"
	TopicSystem Topic = "system"
)

// MessageType discriminates the payload carried in a Message envelope.
// Unknown types MUST be ignored by subscribers, never rejected.
type MessageType string

const (
	MessageOrderBookUpdate  MessageType = "OrderBookUpdate"
	MessageTradeUpdate      MessageType = "TradeUpdate"
	MessageQuoteUpdate      MessageType = "QuoteUpdate"
	MessageBarUpdate        MessageType = "BarUpdate"
	MessageSignalGenerated  MessageType = "SignalGenerated"
	MessageOrderRequest     MessageType = "OrderRequest"
	MessageOrderResponse    MessageType = "OrderResponse"
	MessagePositionUpdate   MessageType = "PositionUpdate"
	MessageRiskCheckRequest MessageType = "RiskCheckRequest"
	MessageRiskCheckResult  MessageType = "RiskCheckResult"
	MessageHeartbeat        MessageType = "Heartbeat"
	MessageShutdown         MessageType = "Shutdown"
)

// Message is the tagged-union wire envelope: a length-prefixed
// JSON object (length-prefixing is applied by the transport, not this
// type) with a top-level "type" discriminator and topic routing key.
type Message struct {
	Type      MessageType     `json:"type"`
	Topic     Topic           `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage marshals payload into a Message envelope.
func NewMessage(typ MessageType, topic Topic, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:      typ,
		Topic:     topic,
		Payload:   raw,
		Timestamp: time.Now(),
	}, nil
}

// Decode unmarshals the envelope's payload into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// RiskCheckRequest is carried on the risk topic from signal processing
// into the risk kernel.
type RiskCheckRequest struct {
	Order        Order   `json:"order"`
	MarketPrice  float64 `json:"market_price"`
}

// RiskCheckResult is the risk kernel's verdict on a RiskCheckRequest.
type RiskCheckResult struct {
	OrderID string `json:"order_id"`
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Heartbeat is sent periodically on the system topic.
type Heartbeat struct {
	Component string    `json:"component"`
	At        time.Time `json:"at"`
}

// Shutdown is the system-topic drain announcement. The bus delivers it
// like any other message; no subscriber in this module acts on it —
// subscriptions drain when the context passed to Subscribe is cancelled.
type Shutdown struct {
	Reason   string        `json:"reason"`
	Deadline time.Duration `json:"deadline"`
}
