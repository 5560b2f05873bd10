package router

import "github.com/shopspring/decimal"

// OrderBookCap bounds an order-book side query: by cumulative base quantity,
// by cumulative notional quote value, or unbounded when both are nil.
type OrderBookCap struct {
	Quantity *decimal.Decimal
	Notional *decimal.Decimal
}

// CapByQuantity builds a quantity-bounded book cap.
func CapByQuantity(quantity decimal.Decimal) OrderBookCap {
	return OrderBookCap{Quantity: &quantity}
}

// CapByNotional builds a notional-bounded book cap.
func CapByNotional(notional decimal.Decimal) OrderBookCap {
	return OrderBookCap{Notional: &notional}
}

// Venue is the external execution environment consumed by the router: market
// metadata, order-book depth, balances and the two side-effect primitives.
// Settlement reports are not returned by SubmitAtomicOrder; they arrive later
// through Engine.OnSettlement, after the host's asynchronous execution
// boundary.
type Venue interface {
	// SpotMarket fetches the descriptor for one hop market.
	SpotMarket(marketID string) (*SpotMarket, bool, error)
	// OrderBookSide returns price levels ordered best to worst, bounded by
	// the supplied cap.
	OrderBookSide(marketID string, side OrderSide, cap OrderBookCap) ([]PriceLevel, error)
	// FeeMultiplier returns the venue's atomic-execution fee multiplier for
	// the market.
	FeeMultiplier(marketID string) (decimal.Decimal, error)
	// Balance returns the router's own deposited balance in the denom.
	Balance(denom string) (decimal.Decimal, error)
	// SubmitAtomicOrder places an immediate-or-abort market order. A non-nil
	// error aborts the surrounding transaction.
	SubmitAtomicOrder(order *Order) error
	// Transfer sends funds out of the router's balance to the destination.
	Transfer(denom string, quantity decimal.Decimal, destination string) error
}
