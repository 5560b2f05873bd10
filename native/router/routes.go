package router

import (
	"github.com/shopspring/decimal"

	"swaprouter/core/amount"
)

// Resolver expands stored routes into traversal order and chains the step
// estimator across hops to produce end-to-end simulated results.
type Resolver struct {
	store     *Store
	estimator *Estimator
}

// NewResolver constructs a resolver over the route store and estimator.
func NewResolver(store *Store, estimator *Estimator) *Resolver {
	return &Resolver{store: store, estimator: estimator}
}

// Steps resolves the ordered hop list for converting sourceDenom into
// targetDenom, reversing the stored order when walking from the
// non-canonical side.
func (r *Resolver) Steps(sourceDenom, targetDenom string) ([]string, error) {
	if sourceDenom == targetDenom {
		return nil, ErrSameDenom
	}
	route, ok, err := r.store.Route(sourceDenom, targetDenom)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoRoute
	}
	return route.StepsFrom(sourceDenom)
}

// EstimateByInput simulates spending exactly quantity of sourceDenom across
// the stored route, feeding each hop's output into the next. Fees are
// collected in forward traversal order.
func (r *Resolver) EstimateByInput(sourceDenom, targetDenom string, quantity decimal.Decimal) (*EstimationResult, error) {
	if !quantity.IsPositive() {
		return nil, ErrNonPositiveQuantity
	}
	steps, err := r.Steps(sourceDenom, targetDenom)
	if err != nil {
		return nil, err
	}
	coin := amount.NewCoin(quantity, sourceDenom)
	fees := make([]amount.Coin, 0, len(steps))
	for _, step := range steps {
		estimate, err := r.estimator.EstimateHop(step, InputQuantity{C: coin}, true)
		if err != nil {
			return nil, err
		}
		if estimate.Fee != nil {
			fees = append(fees, *estimate.Fee)
		}
		coin = estimate.Result
	}
	return &EstimationResult{ResultQuantity: coin, ExpectedFees: fees}, nil
}

// EstimateByTarget simulates the input of sourceDenom required to receive
// exactly quantity of targetDenom. Hops are traversed in reverse using the
// estimator's from-target paths, so the chained result is the required amount
// at the first hop; fees keep this reversed traversal order.
func (r *Resolver) EstimateByTarget(sourceDenom, targetDenom string, quantity decimal.Decimal) (*EstimationResult, error) {
	if !quantity.IsPositive() {
		return nil, ErrNonPositiveQuantity
	}
	steps, err := r.Steps(sourceDenom, targetDenom)
	if err != nil {
		return nil, err
	}
	coin := amount.NewCoin(quantity, targetDenom)
	fees := make([]amount.Coin, 0, len(steps))
	for i := len(steps) - 1; i >= 0; i-- {
		estimate, err := r.estimator.EstimateHop(steps[i], ReceiveQuantity{C: coin}, true)
		if err != nil {
			return nil, err
		}
		if estimate.Fee != nil {
			fees = append(fees, *estimate.Fee)
		}
		coin = estimate.Result
	}
	return &EstimationResult{ResultQuantity: coin, ExpectedFees: fees}, nil
}
