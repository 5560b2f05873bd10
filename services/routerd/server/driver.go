package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"swaprouter/core/amount"
	"swaprouter/core/events"
	"swaprouter/native/router"
	"swaprouter/observability"
	"swaprouter/services/routerd/storage"
)

// SettlementSource delivers trade reports from the venue. The boolean is
// false while no report is pending.
type SettlementSource interface {
	FetchSettlement(ctx context.Context) (*router.TradeReport, bool, error)
}

// SwapParams describes one swap submission.
type SwapParams struct {
	ID          string
	Sender      string
	SourceDenom string
	Quantity    decimal.Decimal
	TargetDenom string
	MinQuantity decimal.Decimal
	Exact       bool
}

// Driver executes swaps against the engine and pumps venue settlement reports
// into it until the operation clears. The engine suspends between a hop's
// order submission and its settlement; the driver is the host that resumes
// it. Unlike a transactional host it cannot roll back on failure, so it calls
// Abort to drop the stranded continuation and records the failure instead.
type Driver struct {
	engine      *router.Engine
	settlements SettlementSource
	audit       *storage.Storage
	logger      *slog.Logger
	poll        time.Duration

	mu      sync.Mutex
	current driverState
}

type driverState struct {
	swapID   string
	result   *amount.Coin
	hopCount int
	lastHop  time.Time
}

// NewDriver builds a driver over the engine and the venue settlement feed.
func NewDriver(engine *router.Engine, settlements SettlementSource, audit *storage.Storage, logger *slog.Logger, poll time.Duration) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	d := &Driver{
		engine:      engine,
		settlements: settlements,
		audit:       audit,
		logger:      logger,
		poll:        poll,
	}
	engine.SetEmitter(d)
	return d
}

// Emit implements events.Emitter; the driver listens for hop settlements and
// the final completion to maintain the audit trail and capture the result.
func (d *Driver) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	d.mu.Lock()
	swapID := d.current.swapID
	d.mu.Unlock()
	switch e := evt.(type) {
	case events.SwapHopSettled:
		d.mu.Lock()
		d.current.hopCount++
		last := d.current.lastHop
		d.current.lastHop = time.Now()
		d.mu.Unlock()
		if !last.IsZero() {
			observability.Metrics().ObserveHopSettlement(time.Since(last))
		}
		if d.audit != nil && swapID != "" {
			if err := d.audit.RecordHop(context.Background(), swapID, e.StepIdx, e.MarketID, e.IsBuy, e.Balance, e.Denom); err != nil {
				d.logger.Warn("record hop", "swap", swapID, "error", err)
			}
		}
	case events.SwapCompleted:
		qty, err := decimal.NewFromString(e.Quantity)
		if err != nil {
			d.logger.Warn("parse completion quantity", "swap", swapID, "error", err)
			return
		}
		coin := amount.NewCoin(qty, e.TargetDenom)
		d.mu.Lock()
		d.current.result = &coin
		d.mu.Unlock()
	}
}

// RunSwap starts the swap and drives settlements until it completes or
// fails. Only one swap runs at a time; the engine enforces the single
// in-flight slot, and the driver serialises callers on top of it.
func (d *Driver) RunSwap(ctx context.Context, params SwapParams) (amount.Coin, error) {
	d.mu.Lock()
	if d.current.swapID != "" {
		d.mu.Unlock()
		return amount.Coin{}, router.ErrSwapInFlight
	}
	d.current = driverState{swapID: params.ID, lastHop: time.Now()}
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.current = driverState{}
		d.mu.Unlock()
	}()

	if d.audit != nil {
		rec := storage.SwapRecord{
			ID:          params.ID,
			Sender:      params.Sender,
			SourceDenom: params.SourceDenom,
			TargetDenom: params.TargetDenom,
			InputAmount: params.Quantity.String(),
			MinTarget:   params.MinQuantity.String(),
		}
		if err := d.audit.RecordSwapStart(ctx, rec); err != nil {
			d.logger.Warn("record swap start", "swap", params.ID, "error", err)
		}
	}

	result, err := d.execute(ctx, params)
	hops := d.hopCount()
	observability.Metrics().RecordSwap(hops, err)
	if err != nil {
		d.fail(params.ID, err)
		return amount.Coin{}, err
	}
	if d.audit != nil {
		if auditErr := d.audit.RecordSwapResult(context.Background(), params.ID, storage.StatusCompleted, result.Amount.String(), ""); auditErr != nil {
			d.logger.Warn("record swap result", "swap", params.ID, "error", auditErr)
		}
	}
	d.logger.Info("swap completed", "swap", params.ID, "result", result.String(), "hops", hops)
	return result, nil
}

func (d *Driver) execute(ctx context.Context, params SwapParams) (amount.Coin, error) {
	funds := []amount.Coin{amount.NewCoin(params.Quantity, params.SourceDenom)}
	var err error
	if params.Exact {
		err = d.engine.StartSwapExact(params.Sender, funds, params.TargetDenom, params.MinQuantity)
	} else {
		err = d.engine.StartSwap(params.Sender, funds, params.TargetDenom, params.MinQuantity)
	}
	if err != nil {
		return amount.Coin{}, err
	}
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()
	for {
		if result, done := d.result(); done {
			return result, nil
		}
		inFlight, err := d.engine.InFlight()
		if err != nil {
			return amount.Coin{}, err
		}
		if !inFlight {
			if result, done := d.result(); done {
				return result, nil
			}
			return amount.Coin{}, fmt.Errorf("routerd: operation cleared without completion")
		}
		select {
		case <-ctx.Done():
			return amount.Coin{}, ctx.Err()
		case <-ticker.C:
		}
		report, ok, err := d.settlements.FetchSettlement(ctx)
		if err != nil {
			return amount.Coin{}, err
		}
		if !ok {
			continue
		}
		if err := d.engine.OnSettlement(report); err != nil {
			return amount.Coin{}, err
		}
	}
}

func (d *Driver) result() (amount.Coin, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current.result == nil {
		return amount.Coin{}, false
	}
	return *d.current.result, true
}

func (d *Driver) hopCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current.hopCount
}

// fail aborts the stranded engine continuation and records the failure.
func (d *Driver) fail(swapID string, cause error) {
	if abortErr := d.engine.Abort(); abortErr != nil {
		d.logger.Error("abort after failure", "swap", swapID, "error", abortErr)
	}
	if d.audit != nil {
		if auditErr := d.audit.RecordSwapResult(context.Background(), swapID, storage.StatusFailed, "", cause.Error()); auditErr != nil {
			d.logger.Warn("record swap failure", "swap", swapID, "error", auditErr)
		}
	}
	d.logger.Error("swap failed", "swap", swapID, "error", cause)
}
