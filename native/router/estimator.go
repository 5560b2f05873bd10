package router

import (
	"fmt"

	"github.com/shopspring/decimal"

	"swaprouter/core/amount"
)

var one = decimal.NewFromInt(1)

// Estimator walks real order-book depth for a single hop and produces the
// achievable quantity, worst and average price and the fee estimate, with the
// conservative rounding the venue applies: consumed levels are rounded up to
// the quantity tick, average prices are rounded against the router (up when
// buying, down when selling) and fee estimates are quantized down to the
// market's price tick.
type Estimator struct {
	venue      Venue
	store      *Store
	ownAddress string
}

// NewEstimator constructs an estimator bound to the venue and config store.
func NewEstimator(venue Venue, store *Store, ownAddress string) *Estimator {
	return &Estimator{venue: venue, store: store, ownAddress: ownAddress}
}

// EstimateHop estimates the execution of one hop for the tagged quantity. In
// simulation mode the buy-path funds check credits the quantity being swapped
// in on top of the router's balance; in execution mode the balance query
// already includes the funds the caller sent.
func (e *Estimator) EstimateHop(marketID string, amt SwapAmount, simulation bool) (*StepEstimate, error) {
	if e == nil || e.venue == nil {
		return nil, fmt.Errorf("router: estimator not configured")
	}
	coin := amt.Coin()
	if !coin.IsPositive() {
		return nil, ErrNonPositiveQuantity
	}
	market, ok, err := e.venue.SpotMarket(marketID)
	if err != nil {
		return nil, err
	}
	if !ok || market == nil {
		return nil, fmt.Errorf("%w: market %s not found", ErrInvariantViolated, marketID)
	}
	feeRate, err := e.effectiveFeeRate(market)
	if err != nil {
		return nil, err
	}
	switch a := amt.(type) {
	case InputQuantity:
		switch coin.Denom {
		case market.QuoteDenom:
			return e.buyFromSource(market, feeRate, coin, simulation)
		case market.BaseDenom:
			return e.sellFromSource(market, feeRate, coin)
		}
	case ReceiveQuantity:
		switch coin.Denom {
		case market.BaseDenom:
			return e.buyFromTarget(market, feeRate, coin, simulation)
		case market.QuoteDenom:
			return e.sellFromTarget(market, feeRate, coin)
		}
	default:
		return nil, fmt.Errorf("router: unsupported swap amount variant %T", a)
	}
	return nil, fmt.Errorf("%w: %s not traded on market %s", ErrInvalidSwapDenom, coin.Denom, market.MarketID)
}

// effectiveFeeRate is taker fee x atomic execution multiplier, discounted by
// the relayer fee share when the router relays for itself.
func (e *Estimator) effectiveFeeRate(market *SpotMarket) (decimal.Decimal, error) {
	multiplier, err := e.venue.FeeMultiplier(market.MarketID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	rate := market.TakerFeeRate.Mul(multiplier)
	selfRelaying, err := e.isSelfRelaying()
	if err != nil {
		return decimal.Decimal{}, err
	}
	if selfRelaying {
		rate = rate.Mul(one.Sub(market.RelayerFeeShareRate))
	}
	return rate, nil
}

func (e *Estimator) isSelfRelaying() (bool, error) {
	cfg, err := e.store.Config()
	if err != nil {
		return false, err
	}
	return cfg.FeeRecipient == e.ownAddress, nil
}

// buyFromSource estimates spending an exact quote quantity (fee included) to
// buy the base asset.
func (e *Estimator) buyFromSource(market *SpotMarket, feeRate decimal.Decimal, swap amount.Coin, simulation bool) (*StepEstimate, error) {
	fee := amount.RoundDownToTick(swap.Amount.Mul(feeRate).Div(one.Add(feeRate)), market.MinPriceTick)
	available := swap.Amount.Sub(fee)
	levels, err := e.venue.OrderBookSide(market.MarketID, SideSell, CapByNotional(available))
	if err != nil {
		return nil, err
	}
	consumed, err := consumeByNotional(levels, available, market.MinQuantityTick)
	if err != nil {
		return nil, err
	}
	avg := averagePrice(consumed, market.MinPriceTick, true)
	worst := consumed[len(consumed)-1].Price
	resultQty := amount.RoundDownToTick(available.Div(avg), market.MinQuantityTick)
	if err := e.checkBuyFunds(market, worst, resultQty, feeRate, swap.Amount, simulation); err != nil {
		return nil, err
	}
	feeCoin := amount.NewCoin(fee, market.QuoteDenom)
	return &StepEstimate{
		WorstPrice: worst,
		Result:     amount.NewCoin(resultQty, market.BaseDenom),
		IsBuyOrder: true,
		Fee:        &feeCoin,
	}, nil
}

// sellFromSource estimates selling an exact base quantity for quote proceeds
// net of fee.
func (e *Estimator) sellFromSource(market *SpotMarket, feeRate decimal.Decimal, swap amount.Coin) (*StepEstimate, error) {
	levels, err := e.venue.OrderBookSide(market.MarketID, SideBuy, CapByQuantity(swap.Amount))
	if err != nil {
		return nil, err
	}
	consumed, err := consumeByQuantity(levels, swap.Amount, market.MinQuantityTick)
	if err != nil {
		return nil, err
	}
	avg := averagePrice(consumed, market.MinPriceTick, false)
	worst := consumed[len(consumed)-1].Price
	notional := swap.Amount.Mul(avg)
	fee := amount.RoundDownToTick(notional.Mul(feeRate), market.MinPriceTick)
	feeCoin := amount.NewCoin(fee, market.QuoteDenom)
	return &StepEstimate{
		WorstPrice: worst,
		Result:     amount.NewCoin(notional.Sub(fee), market.QuoteDenom),
		IsBuyOrder: false,
		Fee:        &feeCoin,
	}, nil
}

// buyFromTarget estimates the quote input (fee on top) required to receive an
// exact base quantity.
func (e *Estimator) buyFromTarget(market *SpotMarket, feeRate decimal.Decimal, want amount.Coin, simulation bool) (*StepEstimate, error) {
	levels, err := e.venue.OrderBookSide(market.MarketID, SideSell, CapByQuantity(want.Amount))
	if err != nil {
		return nil, err
	}
	consumed, err := consumeByQuantity(levels, want.Amount, market.MinQuantityTick)
	if err != nil {
		return nil, err
	}
	avg := averagePrice(consumed, market.MinPriceTick, true)
	worst := consumed[len(consumed)-1].Price
	notional := want.Amount.Mul(avg)
	fee := amount.RoundDownToTick(notional.Mul(feeRate), market.MinPriceTick)
	required := notional.Add(fee)
	if err := e.checkBuyFunds(market, worst, want.Amount, feeRate, required, simulation); err != nil {
		return nil, err
	}
	feeCoin := amount.NewCoin(fee, market.QuoteDenom)
	return &StepEstimate{
		WorstPrice: worst,
		Result:     amount.NewCoin(required, market.QuoteDenom),
		IsBuyOrder: true,
		Fee:        &feeCoin,
	}, nil
}

// sellFromTarget estimates the base input required so that quote proceeds net
// of fee meet an exact quote quantity.
func (e *Estimator) sellFromTarget(market *SpotMarket, feeRate decimal.Decimal, want amount.Coin) (*StepEstimate, error) {
	targetNotional := want.Amount.Div(one.Sub(feeRate))
	levels, err := e.venue.OrderBookSide(market.MarketID, SideBuy, CapByNotional(targetNotional))
	if err != nil {
		return nil, err
	}
	consumed, err := consumeByNotional(levels, targetNotional, market.MinQuantityTick)
	if err != nil {
		return nil, err
	}
	avg := averagePrice(consumed, market.MinPriceTick, false)
	worst := consumed[len(consumed)-1].Price
	requiredBase := amount.RoundUpToTick(targetNotional.Div(avg), market.MinQuantityTick)
	fee := amount.RoundDownToTick(targetNotional.Mul(feeRate), market.MinPriceTick)
	feeCoin := amount.NewCoin(fee, market.QuoteDenom)
	return &StepEstimate{
		WorstPrice: worst,
		Result:     amount.NewCoin(requiredBase, market.BaseDenom),
		IsBuyOrder: false,
		Fee:        &feeCoin,
	}, nil
}

// checkBuyFunds verifies the worst-case cost of a buy against the router's
// quote balance. swappedIn is only credited in simulation mode; the execution
// path's balance query already includes the caller's funds.
func (e *Estimator) checkBuyFunds(market *SpotMarket, worst, quantity, feeRate, swappedIn decimal.Decimal, simulation bool) error {
	balance, err := e.venue.Balance(market.QuoteDenom)
	if err != nil {
		return err
	}
	available := balance
	if simulation {
		available = available.Add(swappedIn)
	}
	required := worst.Mul(quantity).Mul(one.Add(feeRate))
	if required.GreaterThan(available) {
		return fmt.Errorf("%w: required %s %s, available %s %s",
			ErrAmountTooHigh, required.String(), market.QuoteDenom, available.String(), market.QuoteDenom)
	}
	return nil
}

// consumeByQuantity selects the minimal prefix of levels whose cumulative
// quantity covers total, rounding the final partially-needed level up to the
// quantity tick so the consumed set is never short.
func consumeByQuantity(levels []PriceLevel, total, qtyTick decimal.Decimal) ([]PriceLevel, error) {
	remaining := total
	consumed := make([]PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		if lvl.Quantity.GreaterThanOrEqual(remaining) {
			consumed = append(consumed, PriceLevel{Price: lvl.Price, Quantity: amount.RoundUpToTick(remaining, qtyTick)})
			return consumed, nil
		}
		consumed = append(consumed, lvl)
		remaining = remaining.Sub(lvl.Quantity)
	}
	return nil, fmt.Errorf("%w: book depth short by %s", ErrInsufficientLiquidity, remaining.String())
}

// consumeByNotional selects the minimal prefix of levels whose cumulative
// notional value covers total, converting the final level's still-required
// notional into a quantity rounded up to the quantity tick.
func consumeByNotional(levels []PriceLevel, total, qtyTick decimal.Decimal) ([]PriceLevel, error) {
	remaining := total
	consumed := make([]PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		levelNotional := lvl.Price.Mul(lvl.Quantity)
		if levelNotional.GreaterThanOrEqual(remaining) {
			qty := amount.RoundUpToTick(remaining.Div(lvl.Price), qtyTick)
			consumed = append(consumed, PriceLevel{Price: lvl.Price, Quantity: qty})
			return consumed, nil
		}
		consumed = append(consumed, lvl)
		remaining = remaining.Sub(levelNotional)
	}
	return nil, fmt.Errorf("%w: book notional short by %s", ErrInsufficientLiquidity, remaining.String())
}

// averagePrice is consumed notional over consumed quantity, rounded to the
// price tick in the direction unfavourable to the router's counterpart: up
// for buys, down for sells.
func averagePrice(consumed []PriceLevel, priceTick decimal.Decimal, roundUp bool) decimal.Decimal {
	var totalQty, totalNotional decimal.Decimal
	for _, lvl := range consumed {
		totalQty = totalQty.Add(lvl.Quantity)
		totalNotional = totalNotional.Add(lvl.Price.Mul(lvl.Quantity))
	}
	raw := totalNotional.Div(totalQty)
	if roundUp {
		return amount.RoundUpToTick(raw, priceTick)
	}
	return amount.RoundDownToTick(raw, priceTick)
}
