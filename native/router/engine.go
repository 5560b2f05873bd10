package router

import (
	"fmt"

	"github.com/shopspring/decimal"

	"swaprouter/core/amount"
	"swaprouter/core/events"
	nativecommon "swaprouter/native/common"
)

const routerModuleName = "router"

// Engine drives real, irreversible swap execution hop by hop. The boundary
// between submitting a hop's order and receiving its settlement is a
// suspension point imposed by the host: the continuation lives entirely in
// the store's operation/step slots, and OnSettlement is the named resumption
// entry point. Any failure aborts the whole operation; the host rolls the
// surrounding transaction back, so this engine carries no compensation logic.
type Engine struct {
	store      *Store
	venue      Venue
	estimator  *Estimator
	resolver   *Resolver
	emitter    events.Emitter
	pauses     nativecommon.PauseView
	ownAddress string
}

// NewEngine constructs an engine with its estimator and resolver bound to the
// supplied store and venue. ownAddress is the router's trading identity at
// the venue, used for the self-relaying discount.
func NewEngine(store *Store, venue Venue, ownAddress string) *Engine {
	estimator := NewEstimator(venue, store, ownAddress)
	return &Engine{
		store:      store,
		venue:      venue,
		estimator:  estimator,
		resolver:   NewResolver(store, estimator),
		emitter:    events.NoopEmitter{},
		ownAddress: ownAddress,
	}
}

// Resolver exposes the engine's route resolver for simulation callers.
func (e *Engine) Resolver() *Resolver {
	if e == nil {
		return nil
	}
	return e.resolver
}

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses configures the admin pause view consulted before starting swaps.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// InFlight reports whether an operation currently occupies the single
// in-flight slot.
func (e *Engine) InFlight() (bool, error) {
	_, ok, err := e.store.CurrentOperation()
	return ok, err
}

// StartSwap begins a routed swap of the single supplied input coin into
// targetDenom, failing unless at least minQuantity of the target is received
// by the final hop.
func (e *Engine) StartSwap(sender string, funds []amount.Coin, targetDenom string, minQuantity decimal.Decimal) error {
	if e == nil || e.store == nil || e.venue == nil {
		return fmt.Errorf("router: engine not configured")
	}
	if err := nativecommon.Guard(e.pauses, routerModuleName); err != nil {
		return err
	}
	if len(funds) != 1 {
		return ErrSingleDenomRequired
	}
	input := funds[0]
	if err := input.Validate(); err != nil {
		return err
	}
	if !input.IsPositive() {
		return ErrNonPositiveQuantity
	}
	if !minQuantity.IsPositive() {
		return fmt.Errorf("%w: minimum target quantity", ErrNonPositiveQuantity)
	}
	if inFlight, err := e.InFlight(); err != nil {
		return err
	} else if inFlight {
		return ErrSwapInFlight
	}
	steps, err := e.resolver.Steps(input.Denom, targetDenom)
	if err != nil {
		return err
	}
	op := &CurrentSwapOperation{
		Sender:            sender,
		Steps:             steps,
		SourceDenom:       input.Denom,
		TargetDenom:       targetDenom,
		MinTargetQuantity: minQuantity,
	}
	if err := e.store.SetCurrentOperation(op); err != nil {
		return err
	}
	e.emit(events.SwapStarted{
		Sender:      sender,
		SourceDenom: input.Denom,
		TargetDenom: targetDenom,
		Quantity:    input.Amount.String(),
		Steps:       steps,
	})
	return e.executeHop(op, 0, input)
}

// StartSwapExact begins a routed swap that must deliver exactly
// exactQuantity of the target. The required input is computed by reverse
// estimation; the swap is rejected when it exceeds the provided funds.
func (e *Engine) StartSwapExact(sender string, funds []amount.Coin, targetDenom string, exactQuantity decimal.Decimal) error {
	if len(funds) != 1 {
		return ErrSingleDenomRequired
	}
	if !exactQuantity.IsPositive() {
		return ErrNonPositiveQuantity
	}
	required, err := e.resolver.EstimateByTarget(funds[0].Denom, targetDenom, exactQuantity)
	if err != nil {
		return err
	}
	if required.ResultQuantity.Amount.GreaterThan(funds[0].Amount) {
		return fmt.Errorf("%w: required %s, provided %s",
			ErrInsufficientInput, required.ResultQuantity.String(), funds[0].String())
	}
	return e.StartSwap(sender, funds, targetDenom, exactQuantity)
}

// executeHop estimates hop stepIdx against the incoming balance, persists the
// continuation and submits the atomic order. Control then returns to the
// host until the settlement report arrives.
func (e *Engine) executeHop(op *CurrentSwapOperation, stepIdx uint32, balance amount.Coin) error {
	marketID := op.Steps[stepIdx]
	estimate, err := e.estimator.EstimateHop(marketID, InputQuantity{C: balance}, false)
	if err != nil {
		return err
	}
	orderQty := balance.Amount
	if estimate.IsBuyOrder {
		orderQty = estimate.Result.Amount
	}
	side := SideSell
	if estimate.IsBuyOrder {
		side = SideBuy
	}
	cfg, err := e.store.Config()
	if err != nil {
		return err
	}
	step := &CurrentSwapStep{
		StepIdx:     stepIdx,
		Balance:     balance,
		TargetDenom: estimate.Result.Denom,
		IsBuy:       estimate.IsBuyOrder,
	}
	if err := e.store.SetCurrentStep(step); err != nil {
		return err
	}
	order := &Order{
		MarketID:     marketID,
		Price:        estimate.WorstPrice,
		Quantity:     orderQty,
		Side:         side,
		FeeRecipient: cfg.FeeRecipient,
	}
	// Submission failure aborts the whole transaction; no reply follows.
	return e.venue.SubmitAtomicOrder(order)
}

// OnSettlement resumes the in-flight operation with the trade report of the
// hop that just settled. The next hop's order size derives from the actual
// fill, not the estimate.
func (e *Engine) OnSettlement(report *TradeReport) error {
	if e == nil || e.store == nil {
		return fmt.Errorf("router: engine not configured")
	}
	if report == nil {
		return fmt.Errorf("%w: report missing", ErrSettlementParse)
	}
	filledQty, avgPrice, fee, err := parseReport(report)
	if err != nil {
		return err
	}
	step, ok, err := e.store.CurrentStep()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoActiveSwap
	}
	op, ok, err := e.store.CurrentOperation()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: step persisted without operation", ErrInvariantViolated)
	}
	var newBalance amount.Coin
	if step.IsBuy {
		newBalance = amount.NewCoin(filledQty, step.TargetDenom)
	} else {
		newBalance = amount.NewCoin(filledQty.Mul(avgPrice).Sub(fee), step.TargetDenom)
	}
	e.emit(events.SwapHopSettled{
		StepIdx:  step.StepIdx,
		MarketID: op.Steps[step.StepIdx],
		IsBuy:    step.IsBuy,
		Balance:  newBalance.Amount.String(),
		Denom:    newBalance.Denom,
	})
	if int(step.StepIdx) < len(op.Steps)-1 {
		return e.executeHop(op, step.StepIdx+1, newBalance)
	}
	if newBalance.Amount.LessThan(op.MinTargetQuantity) {
		return fmt.Errorf("%w: received %s, minimum %s %s",
			ErrMinimumNotReached, newBalance.String(), op.MinTargetQuantity.String(), op.TargetDenom)
	}
	if err := e.store.ClearCurrentStep(); err != nil {
		return err
	}
	if err := e.store.ClearCurrentOperation(); err != nil {
		return err
	}
	if err := e.venue.Transfer(newBalance.Denom, newBalance.Amount, op.Sender); err != nil {
		return err
	}
	e.emit(events.SwapCompleted{
		Sender:      op.Sender,
		TargetDenom: newBalance.Denom,
		Quantity:    newBalance.Amount.String(),
	})
	return nil
}

// Abort clears the in-flight continuation. Hosts with transactional rollback
// never need it; the sidecar driver calls it when a hop fails mid-operation.
func (e *Engine) Abort() error {
	if e == nil || e.store == nil {
		return fmt.Errorf("router: engine not configured")
	}
	if err := e.store.ClearCurrentStep(); err != nil {
		return err
	}
	return e.store.ClearCurrentOperation()
}

func parseReport(report *TradeReport) (qty, price, fee decimal.Decimal, err error) {
	qty, err = amount.FromWire(report.Quantity)
	if err != nil {
		return qty, price, fee, fmt.Errorf("%w: quantity: %v", ErrSettlementParse, err)
	}
	price, err = amount.FromWire(report.AveragePrice)
	if err != nil {
		return qty, price, fee, fmt.Errorf("%w: average price: %v", ErrSettlementParse, err)
	}
	fee, err = amount.FromWire(report.Fee)
	if err != nil {
		return qty, price, fee, fmt.Errorf("%w: fee: %v", ErrSettlementParse, err)
	}
	return qty, price, fee, nil
}
