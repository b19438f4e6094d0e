package router

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/abdoElHodaky/tradSys/internal/domain"
	domainerrors "github.com/abdoElHodaky/tradSys/internal/domain/errors"
)

// BrokerOrderRequest is the Alpaca-style order envelope: symbol,
// qty, side, type, time_in_force, and optional limit/stop prices.
type BrokerOrderRequest struct {
	Symbol      string   `json:"symbol"`
	Qty         float64  `json:"qty,string"`
	Side        string   `json:"side"`
	Type        string   `json:"type"`
	TimeInForce string   `json:"time_in_force"`
	LimitPrice  *float64 `json:"limit_price,omitempty"`
	StopPrice   *float64 `json:"stop_price,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// BrokerOrderResponse is the broker's order acknowledgement shape.
type BrokerOrderResponse struct {
	ID             string  `json:"id"`
	ClientOrderID  string  `json:"client_order_id"`
	Status         string  `json:"status"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Qty            float64 `json:"qty,string"`
	FilledQty      float64 `json:"filled_qty,string"`
	FilledAvgPrice *string `json:"filled_avg_price,omitempty"`
}

// ToBrokerRequest translates a domain.Order into the broker envelope,
// always submitting GTC time-in-force.
func ToBrokerRequest(order domain.Order) BrokerOrderRequest {
	return BrokerOrderRequest{
		Symbol:        string(order.Symbol),
		Qty:           order.Quantity,
		Side:          string(order.Side),
		Type:          string(order.Type),
		TimeInForce:   string(domain.TimeInForceGTC),
		LimitPrice:    order.LimitPrice,
		StopPrice:     order.StopPrice,
		ClientOrderID: order.ClientID,
	}
}

// Broker submits, queries and cancels orders against the broker HTTP
// contract.
type Broker interface {
	SubmitOrder(ctx context.Context, req BrokerOrderRequest) (BrokerOrderResponse, error)
	GetOrder(ctx context.Context, id string) (BrokerOrderResponse, error)
	CancelOrder(ctx context.Context, id string) error
}

// HTTPBroker implements Broker against the live Alpaca-style REST API
// using net/http directly; no vendor SDK dependency is pulled in for a
// handful of REST calls.
type HTTPBroker struct {
	cfg    BrokerConfig
	client *http.Client
}

// NewHTTPBroker constructs a broker client with TLS 1.2 minimum.
func NewHTTPBroker(cfg BrokerConfig) *HTTPBroker {
	return &HTTPBroker{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: minTLSVersion},
			},
			Timeout: 10 * time.Second,
		},
	}
}

func (b *HTTPBroker) do(ctx context.Context, method, path string, body any) (BrokerOrderResponse, error) {
	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return BrokerOrderResponse{}, domainerrors.Wrap(err, domainerrors.CodeSerialization, "encode broker request")
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return BrokerOrderResponse{}, domainerrors.Wrap(err, domainerrors.CodeNetwork, "build broker request")
	}
	req.Header.Set("APCA-API-KEY-ID", b.cfg.APIKeyID)
	req.Header.Set("APCA-API-SECRET-KEY", b.cfg.APISecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return BrokerOrderResponse{}, domainerrors.Wrap(err, domainerrors.CodeNetwork, "broker request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return BrokerOrderResponse{}, domainerrors.Wrap(err, domainerrors.CodeNetwork, "read broker response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return BrokerOrderResponse{}, domainerrors.New(domainerrors.CodeExchange, "broker returned a non-2xx response").
			WithDetail("status", resp.StatusCode).
			WithDetail("body", string(respBody))
	}

	if len(respBody) == 0 {
		return BrokerOrderResponse{}, nil
	}

	var out BrokerOrderResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return BrokerOrderResponse{}, domainerrors.Wrap(err, domainerrors.CodeParse, "parse broker response")
	}
	return out, nil
}

// SubmitOrder POSTs to /v2/orders.
func (b *HTTPBroker) SubmitOrder(ctx context.Context, req BrokerOrderRequest) (BrokerOrderResponse, error) {
	return b.do(ctx, http.MethodPost, "/v2/orders", req)
}

// GetOrder GETs /v2/orders/{id}.
func (b *HTTPBroker) GetOrder(ctx context.Context, id string) (BrokerOrderResponse, error) {
	return b.do(ctx, http.MethodGet, fmt.Sprintf("/v2/orders/%s", id), nil)
}

// CancelOrder DELETEs /v2/orders/{id}.
func (b *HTTPBroker) CancelOrder(ctx context.Context, id string) error {
	_, err := b.do(ctx, http.MethodDelete, fmt.Sprintf("/v2/orders/%s", id), nil)
	return err
}

// PaperBroker synthesizes filled responses without any network call,
// with a uuid-generated order id; the client order id is echoed from the
// request.
type PaperBroker struct{}

// NewPaperBroker constructs a paper-trading broker.
func NewPaperBroker() *PaperBroker { return &PaperBroker{} }

// SubmitOrder immediately synthesizes a filled response.
func (p *PaperBroker) SubmitOrder(_ context.Context, req BrokerOrderRequest) (BrokerOrderResponse, error) {
	return BrokerOrderResponse{
		ID:            uuid.NewString(),
		ClientOrderID: req.ClientOrderID,
		Status:        string(domain.OrderStatusFilled),
		Symbol:        req.Symbol,
		Side:          req.Side,
		Qty:           req.Qty,
		FilledQty:     req.Qty,
	}, nil
}

// GetOrder returns a synthesized filled status for any id.
func (p *PaperBroker) GetOrder(_ context.Context, id string) (BrokerOrderResponse, error) {
	return BrokerOrderResponse{ID: id, Status: string(domain.OrderStatusFilled)}, nil
}

// CancelOrder always succeeds in paper trading.
func (p *PaperBroker) CancelOrder(_ context.Context, _ string) error { return nil }
