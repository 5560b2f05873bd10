package router

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"swaprouter/core/amount"
)

// OrderSide identifies which side of the book an order or query targets.
type OrderSide string

const (
	// SideBuy is a bid for the market's base denom.
	SideBuy OrderSide = "buy"
	// SideSell is an offer of the market's base denom.
	SideSell OrderSide = "sell"
)

// SpotMarket describes one order-book market used as a swap hop. Descriptors
// are fetched fresh from the venue for every estimation and never cached.
type SpotMarket struct {
	MarketID            string
	BaseDenom           string
	QuoteDenom          string
	TakerFeeRate        decimal.Decimal
	RelayerFeeShareRate decimal.Decimal
	MinPriceTick        decimal.Decimal
	MinQuantityTick     decimal.Decimal
}

// PriceLevel is one rung of order-book depth, ordered best to worst.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// SwapRoute is a stored, bidirectional, ordered sequence of hop markets
// converting between two denoms. Routes are written only by the admin surface
// and read-only to the router core.
type SwapRoute struct {
	SourceDenom string
	TargetDenom string
	Steps       []string
}

// Validate enforces the route invariants: distinct denoms, a non-empty hop
// list and no duplicate hop identifiers.
func (r *SwapRoute) Validate() error {
	if r == nil {
		return ErrRouteNil
	}
	source := strings.TrimSpace(r.SourceDenom)
	target := strings.TrimSpace(r.TargetDenom)
	if source == "" || target == "" {
		return ErrRouteDenomRequired
	}
	if source == target {
		return ErrSameDenom
	}
	if len(r.Steps) == 0 {
		return ErrEmptyRoute
	}
	seen := make(map[string]struct{}, len(r.Steps))
	for _, step := range r.Steps {
		trimmed := strings.TrimSpace(step)
		if trimmed == "" {
			return ErrEmptyRouteStep
		}
		if _, ok := seen[trimmed]; ok {
			return ErrDuplicateRouteStep
		}
		seen[trimmed] = struct{}{}
	}
	return nil
}

// StepsFrom returns the hop list in the traversal order implied by walking
// the route starting at the supplied denom. Walking from the non-canonical
// side yields the exact reverse of the stored order.
func (r *SwapRoute) StepsFrom(sourceDenom string) ([]string, error) {
	switch strings.TrimSpace(sourceDenom) {
	case r.SourceDenom:
		return append([]string(nil), r.Steps...), nil
	case r.TargetDenom:
		reversed := make([]string, len(r.Steps))
		for i, step := range r.Steps {
			reversed[len(r.Steps)-1-i] = step
		}
		return reversed, nil
	default:
		return nil, ErrRouteDenomMismatch
	}
}

// PairKey renders the unordered denom pair key under which a route is stored:
// the two denoms joined in lexicographic order, so one record serves both
// traversal directions.
func PairKey(denomA, denomB string) string {
	pair := []string{strings.TrimSpace(denomA), strings.TrimSpace(denomB)}
	sort.Strings(pair)
	return pair[0] + "/" + pair[1]
}

// Config holds the router's administrative settings. FeeRecipient may be the
// router's own trading address, in which case orders qualify for the
// self-relaying fee-share discount.
type Config struct {
	Admin        string
	FeeRecipient string
}

// SwapAmount is the tagged quantity handed to the step estimator: either the
// exact amount being spent, or the exact amount desired on the other side.
// Consumers must switch exhaustively over both variants.
type SwapAmount interface {
	Coin() amount.Coin
	swapAmount()
}

// InputQuantity tags an amount as "I am spending exactly this".
type InputQuantity struct {
	C amount.Coin
}

// Coin returns the tagged coin.
func (q InputQuantity) Coin() amount.Coin { return q.C }

func (InputQuantity) swapAmount() {}

// ReceiveQuantity tags an amount as "I want to receive exactly this".
type ReceiveQuantity struct {
	C amount.Coin
}

// Coin returns the tagged coin.
func (q ReceiveQuantity) Coin() amount.Coin { return q.C }

func (ReceiveQuantity) swapAmount() {}

// StepEstimate is the ephemeral outcome of estimating a single hop.
type StepEstimate struct {
	WorstPrice decimal.Decimal
	Result     amount.Coin
	IsBuyOrder bool
	Fee        *amount.Coin
}

// EstimationResult is returned to simulation callers: the end-to-end result
// quantity and the per-hop fee estimates in traversal order.
type EstimationResult struct {
	ResultQuantity amount.Coin
	ExpectedFees   []amount.Coin
}

// CurrentSwapOperation is the durable record of an in-flight multi-hop swap.
// It is created when the swap starts, survives every settlement boundary and
// is removed when the final hop completes. A failed operation never persists:
// the host rolls the surrounding transaction back.
type CurrentSwapOperation struct {
	Sender            string
	Steps             []string
	SourceDenom       string
	TargetDenom       string
	MinTargetQuantity decimal.Decimal
}

// CurrentSwapStep is the durable continuation for the hop whose settlement
// report is pending. It is overwritten on every hop and removed together with
// the operation record.
type CurrentSwapStep struct {
	StepIdx     uint32
	Balance     amount.Coin
	TargetDenom string
	IsBuy       bool
}

// Order carries the parameters of one atomic market order derived from a hop
// estimate.
type Order struct {
	MarketID     string
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	Side         OrderSide
	FeeRecipient string
}

// TradeReport is the settlement notification delivered by the venue after an
// atomic order executes. All fields use the 18-decimal integer wire encoding.
type TradeReport struct {
	Quantity     string
	AveragePrice string
	Fee          string
}
