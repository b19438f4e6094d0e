package router

import (
	"context"
	"fmt"
	"time"

	"github.com/abdoElHodaky/tradSys/internal/domain"
)

// TWAPSlicer divides an order into n equal-quantity child orders spaced
// interval apart for TWAP slicing. The first child-order error aborts
// the remaining slices (propagated, not swallowed).
type TWAPSlicer struct {
	router   *Router
	interval time.Duration
}

// NewTWAPSlicer constructs a slicer over router, sleeping interval
// between successive slices.
func NewTWAPSlicer(router *Router, interval time.Duration) *TWAPSlicer {
	return &TWAPSlicer{router: router, interval: interval}
}

// Slice splits order into n equal slices, suffixing the client id with
// "_slice_k", routing each in turn and sleeping interval before the
// next. It returns every response collected before an abortive error.
func (t *TWAPSlicer) Slice(ctx context.Context, order domain.Order, n int) ([]BrokerOrderResponse, error) {
	if n < 1 {
		n = 1
	}
	sliceQty := order.Quantity / float64(n)

	responses := make([]BrokerOrderResponse, 0, n)
	for k := 0; k < n; k++ {
		child := order
		child.Quantity = sliceQty
		child.ClientID = fmt.Sprintf("%s_slice_%d", order.ClientID, k)

		resp, err := t.router.Route(ctx, child, nil)
		if err != nil {
			return responses, err
		}
		responses = append(responses, resp)

		if k < n-1 {
			select {
			case <-ctx.Done():
				return responses, ctx.Err()
			case <-time.After(t.interval):
			}
		}
	}
	return responses, nil
}
