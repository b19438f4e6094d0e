package features

import (
	"github.com/abdoElHodaky/tradSys/internal/domain"
	"github.com/abdoElHodaky/tradSys/internal/orderbook"
)

// BarFrom adapts a domain.Bar into the Bar shape Build expects.
func BarFrom(b domain.Bar) Bar {
	return Bar{Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
}

// BookSnapshotFrom adapts a live orderbook.Engine into the BookSnapshot
// shape Build expects, using the top-5-level depth and imbalance.
func BookSnapshotFrom(e *orderbook.Engine) BookSnapshot {
	var snap BookSnapshot
	if bid, ok := e.BestBid(); ok {
		snap.BestBid = bid.Price
		snap.HasBid = true
	}
	if ask, ok := e.BestAsk(); ok {
		snap.BestAsk = ask.Price
		snap.HasAsk = true
	}
	snap.BidDepthTop5, snap.AskDepthTop5 = e.Depth(5)
	snap.DepthImbalance = e.Imbalance(5)
	return snap
}
