package router

import "errors"

var (
	// ErrRouteNil indicates a nil route was supplied.
	ErrRouteNil = errors.New("router: route must not be nil")
	// ErrRouteDenomRequired indicates a route with a missing denom.
	ErrRouteDenomRequired = errors.New("router: route denoms required")
	// ErrSameDenom indicates source and target denoms are identical.
	ErrSameDenom = errors.New("router: source and target denom must differ")
	// ErrEmptyRoute indicates a route without hops.
	ErrEmptyRoute = errors.New("router: route requires at least one step")
	// ErrEmptyRouteStep indicates a blank hop identifier.
	ErrEmptyRouteStep = errors.New("router: route step id required")
	// ErrDuplicateRouteStep indicates the same hop appears twice in a route.
	ErrDuplicateRouteStep = errors.New("router: duplicate route step")
	// ErrRouteDenomMismatch indicates a traversal from a denom the route does
	// not terminate in.
	ErrRouteDenomMismatch = errors.New("router: denom not part of route")
	// ErrNoRoute indicates no stored route covers the requested denom pair.
	ErrNoRoute = errors.New("router: no route for denom pair")
	// ErrInvalidSwapDenom indicates the estimated amount is denominated in
	// neither side of the hop market.
	ErrInvalidSwapDenom = errors.New("router: invalid swap denom")
	// ErrInsufficientLiquidity indicates the book's cumulative depth cannot
	// satisfy the requested total.
	ErrInsufficientLiquidity = errors.New("router: insufficient liquidity to fulfill order")
	// ErrAmountTooHigh indicates the worst-case cost of a buy exceeds the
	// available funds.
	ErrAmountTooHigh = errors.New("router: swap amount too high")
	// ErrNonPositiveQuantity indicates a zero or negative requested quantity.
	ErrNonPositiveQuantity = errors.New("router: quantity must be positive")
	// ErrSingleDenomRequired indicates swap funds were not exactly one coin.
	ErrSingleDenomRequired = errors.New("router: exactly one input coin required")
	// ErrMinimumNotReached indicates the final proceeds fell short of the
	// caller's minimum. The host rolls back every hop of the operation.
	ErrMinimumNotReached = errors.New("router: minimum output quantity not reached")
	// ErrInsufficientInput indicates an exact-output swap needs more input
	// than the caller provided.
	ErrInsufficientInput = errors.New("router: required input exceeds provided funds")
	// ErrSettlementParse indicates a malformed trade settlement report.
	ErrSettlementParse = errors.New("router: malformed trade settlement report")
	// ErrSwapInFlight indicates an operation record already occupies the
	// single in-flight slot.
	ErrSwapInFlight = errors.New("router: swap operation already in flight")
	// ErrNoActiveSwap indicates a settlement arrived with no persisted
	// continuation state.
	ErrNoActiveSwap = errors.New("router: no swap operation in flight")
	// ErrConfigMissing indicates the router configuration was never stored.
	ErrConfigMissing = errors.New("router: config not set")
	// ErrInvariantViolated indicates a collaborator lookup that must succeed
	// returned nothing. Reported as an error rather than terminating the
	// process.
	ErrInvariantViolated = errors.New("router: invariant violated")
)
