package router

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"swaprouter/core/amount"
)

// Storage is the durable KV slot store backing the router. Values are encoded
// by the implementation (the bundled backend uses RLP); keys are opaque byte
// prefixes owned by this package.
type Storage interface {
	KVPut(key []byte, value interface{}) error
	KVGet(key []byte, out interface{}) (bool, error)
	KVDelete(key []byte) error
	KVIterate(prefix []byte, fn func(key []byte) error) error
}

type storedConfig struct {
	Admin        string
	FeeRecipient string
}

type storedRoute struct {
	SourceDenom string
	TargetDenom string
	Steps       []string
}

type storedOperation struct {
	Sender            string
	Steps             []string
	SourceDenom       string
	TargetDenom       string
	MinTargetQuantity string
}

type storedStep struct {
	StepIdx       uint32
	BalanceAmount string
	BalanceDenom  string
	TargetDenom   string
	IsBuy         bool
}

// Store persists router configuration, the route table and the single
// in-flight operation/step slot pair.
type Store struct {
	storage Storage
}

// NewStore constructs a Store backed by the provided storage.
func NewStore(storage Storage) *Store {
	return &Store{storage: storage}
}

// SetConfig persists the router configuration.
func (s *Store) SetConfig(cfg *Config) error {
	if s == nil || s.storage == nil {
		return fmt.Errorf("router: store not initialised")
	}
	if cfg == nil {
		return fmt.Errorf("router: config must not be nil")
	}
	record := storedConfig{
		Admin:        strings.TrimSpace(cfg.Admin),
		FeeRecipient: strings.TrimSpace(cfg.FeeRecipient),
	}
	if record.FeeRecipient == "" {
		return fmt.Errorf("router: fee recipient required")
	}
	return s.storage.KVPut(configKey, &record)
}

// Config loads the router configuration.
func (s *Store) Config() (*Config, error) {
	if s == nil || s.storage == nil {
		return nil, fmt.Errorf("router: store not initialised")
	}
	var record storedConfig
	ok, err := s.storage.KVGet(configKey, &record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConfigMissing
	}
	return &Config{Admin: record.Admin, FeeRecipient: record.FeeRecipient}, nil
}

// SetRoute validates and persists a route under its unordered pair key.
func (s *Store) SetRoute(route *SwapRoute) error {
	if s == nil || s.storage == nil {
		return fmt.Errorf("router: store not initialised")
	}
	if err := route.Validate(); err != nil {
		return err
	}
	record := storedRoute{
		SourceDenom: strings.TrimSpace(route.SourceDenom),
		TargetDenom: strings.TrimSpace(route.TargetDenom),
		Steps:       append([]string(nil), route.Steps...),
	}
	return s.storage.KVPut(routeKey(PairKey(route.SourceDenom, route.TargetDenom)), &record)
}

// Route loads the stored route covering the unordered denom pair.
func (s *Store) Route(denomA, denomB string) (*SwapRoute, bool, error) {
	if s == nil || s.storage == nil {
		return nil, false, fmt.Errorf("router: store not initialised")
	}
	var record storedRoute
	ok, err := s.storage.KVGet(routeKey(PairKey(denomA, denomB)), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &SwapRoute{
		SourceDenom: record.SourceDenom,
		TargetDenom: record.TargetDenom,
		Steps:       append([]string(nil), record.Steps...),
	}, true, nil
}

// DeleteRoute removes the route stored for the unordered denom pair.
func (s *Store) DeleteRoute(denomA, denomB string) error {
	if s == nil || s.storage == nil {
		return fmt.Errorf("router: store not initialised")
	}
	return s.storage.KVDelete(routeKey(PairKey(denomA, denomB)))
}

// Routes lists every stored route.
func (s *Store) Routes() ([]SwapRoute, error) {
	if s == nil || s.storage == nil {
		return nil, fmt.Errorf("router: store not initialised")
	}
	var routes []SwapRoute
	err := s.storage.KVIterate(routePrefix, func(key []byte) error {
		var record storedRoute
		ok, err := s.storage.KVGet(key, &record)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		routes = append(routes, SwapRoute{
			SourceDenom: record.SourceDenom,
			TargetDenom: record.TargetDenom,
			Steps:       append([]string(nil), record.Steps...),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return routes, nil
}

// SetCurrentOperation persists the in-flight operation record.
func (s *Store) SetCurrentOperation(op *CurrentSwapOperation) error {
	if s == nil || s.storage == nil {
		return fmt.Errorf("router: store not initialised")
	}
	if op == nil {
		return fmt.Errorf("router: operation must not be nil")
	}
	record := storedOperation{
		Sender:            op.Sender,
		Steps:             append([]string(nil), op.Steps...),
		SourceDenom:       op.SourceDenom,
		TargetDenom:       op.TargetDenom,
		MinTargetQuantity: op.MinTargetQuantity.String(),
	}
	return s.storage.KVPut(currentOperationKey, &record)
}

// CurrentOperation loads the in-flight operation record, if any.
func (s *Store) CurrentOperation() (*CurrentSwapOperation, bool, error) {
	if s == nil || s.storage == nil {
		return nil, false, fmt.Errorf("router: store not initialised")
	}
	var record storedOperation
	ok, err := s.storage.KVGet(currentOperationKey, &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	minQty, err := decimal.NewFromString(record.MinTargetQuantity)
	if err != nil {
		return nil, false, fmt.Errorf("router: decode operation minimum: %w", err)
	}
	return &CurrentSwapOperation{
		Sender:            record.Sender,
		Steps:             append([]string(nil), record.Steps...),
		SourceDenom:       record.SourceDenom,
		TargetDenom:       record.TargetDenom,
		MinTargetQuantity: minQty,
	}, true, nil
}

// ClearCurrentOperation removes the in-flight operation record.
func (s *Store) ClearCurrentOperation() error {
	if s == nil || s.storage == nil {
		return fmt.Errorf("router: store not initialised")
	}
	return s.storage.KVDelete(currentOperationKey)
}

// SetCurrentStep persists the continuation for the hop awaiting settlement.
func (s *Store) SetCurrentStep(step *CurrentSwapStep) error {
	if s == nil || s.storage == nil {
		return fmt.Errorf("router: store not initialised")
	}
	if step == nil {
		return fmt.Errorf("router: step must not be nil")
	}
	record := storedStep{
		StepIdx:       step.StepIdx,
		BalanceAmount: step.Balance.Amount.String(),
		BalanceDenom:  step.Balance.Denom,
		TargetDenom:   step.TargetDenom,
		IsBuy:         step.IsBuy,
	}
	return s.storage.KVPut(currentStepKey, &record)
}

// CurrentStep loads the pending hop continuation, if any.
func (s *Store) CurrentStep() (*CurrentSwapStep, bool, error) {
	if s == nil || s.storage == nil {
		return nil, false, fmt.Errorf("router: store not initialised")
	}
	var record storedStep
	ok, err := s.storage.KVGet(currentStepKey, &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	balance, err := decimal.NewFromString(record.BalanceAmount)
	if err != nil {
		return nil, false, fmt.Errorf("router: decode step balance: %w", err)
	}
	return &CurrentSwapStep{
		StepIdx:     record.StepIdx,
		Balance:     amount.NewCoin(balance, record.BalanceDenom),
		TargetDenom: record.TargetDenom,
		IsBuy:       record.IsBuy,
	}, true, nil
}

// ClearCurrentStep removes the pending hop continuation.
func (s *Store) ClearCurrentStep() error {
	if s == nil || s.storage == nil {
		return fmt.Errorf("router: store not initialised")
	}
	return s.storage.KVDelete(currentStepKey)
}
