package router

import (
	"sort"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/shopspring/decimal"

	"swaprouter/core/amount"
)

type mockStorage struct {
	kv map[string][]byte
}

func newMockStorage() *mockStorage {
	return &mockStorage{kv: make(map[string][]byte)}
}

func (m *mockStorage) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.kv[string(key)] = encoded
	return nil
}

func (m *mockStorage) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.kv[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *mockStorage) KVDelete(key []byte) error {
	delete(m.kv, string(key))
	return nil
}

func (m *mockStorage) KVIterate(prefix []byte, fn func(key []byte) error) error {
	keys := make([]string, 0, len(m.kv))
	for key := range m.kv {
		if strings.HasPrefix(key, string(prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := fn([]byte(key)); err != nil {
			return err
		}
	}
	return nil
}

type bookKey struct {
	marketID string
	side     OrderSide
}

// fakeVenue serves canned markets, books and balances, and records the
// side-effect calls the engine makes.
type fakeVenue struct {
	markets     map[string]*SpotMarket
	books       map[bookKey][]PriceLevel
	multipliers map[string]decimal.Decimal
	balances    map[string]decimal.Decimal

	orders    []*Order
	transfers []transferCall
}

type transferCall struct {
	denom       string
	quantity    decimal.Decimal
	destination string
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{
		markets:     make(map[string]*SpotMarket),
		books:       make(map[bookKey][]PriceLevel),
		multipliers: make(map[string]decimal.Decimal),
		balances:    make(map[string]decimal.Decimal),
	}
}

func (v *fakeVenue) addMarket(market *SpotMarket, multiplier string) {
	v.markets[market.MarketID] = market
	v.multipliers[market.MarketID] = decimal.RequireFromString(multiplier)
}

func (v *fakeVenue) setBook(marketID string, side OrderSide, levels ...PriceLevel) {
	v.books[bookKey{marketID: marketID, side: side}] = levels
}

func (v *fakeVenue) setBalance(denom, qty string) {
	v.balances[denom] = decimal.RequireFromString(qty)
}

func (v *fakeVenue) SpotMarket(marketID string) (*SpotMarket, bool, error) {
	market, ok := v.markets[marketID]
	return market, ok, nil
}

func (v *fakeVenue) OrderBookSide(marketID string, side OrderSide, cap OrderBookCap) ([]PriceLevel, error) {
	return v.books[bookKey{marketID: marketID, side: side}], nil
}

func (v *fakeVenue) FeeMultiplier(marketID string) (decimal.Decimal, error) {
	return v.multipliers[marketID], nil
}

func (v *fakeVenue) Balance(denom string) (decimal.Decimal, error) {
	return v.balances[denom], nil
}

func (v *fakeVenue) SubmitAtomicOrder(order *Order) error {
	v.orders = append(v.orders, order)
	return nil
}

func (v *fakeVenue) Transfer(denom string, quantity decimal.Decimal, destination string) error {
	v.transfers = append(v.transfers, transferCall{denom: denom, quantity: quantity, destination: destination})
	return nil
}

func level(price, qty string) PriceLevel {
	return PriceLevel{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	}
}

// injEthFixture wires the two-hop inj -> usdt -> eth scenario: selling inj
// into usdt on the first market, then buying eth with the proceeds on the
// second. Fee rates are taker 0.001 with atomic multiplier 1.5 and the fee
// recipient is a third-party relayer, so the effective rate is 0.0015.
func injEthFixture(t *testing.T) (*Store, *fakeVenue, *Engine) {
	t.Helper()
	store := NewStore(newMockStorage())
	if err := store.SetConfig(&Config{Admin: "inj1admin", FeeRecipient: "inj1relayer"}); err != nil {
		t.Fatalf("set config: %v", err)
	}
	if err := store.SetRoute(&SwapRoute{SourceDenom: "inj", TargetDenom: "eth", Steps: []string{"inj-usdt", "eth-usdt"}}); err != nil {
		t.Fatalf("set route: %v", err)
	}

	venue := newFakeVenue()
	venue.addMarket(&SpotMarket{
		MarketID:            "inj-usdt",
		BaseDenom:           "inj",
		QuoteDenom:          "usdt",
		TakerFeeRate:        decimal.RequireFromString("0.001"),
		RelayerFeeShareRate: decimal.RequireFromString("0.4"),
		MinPriceTick:        decimal.RequireFromString("0.000001"),
		MinQuantityTick:     decimal.RequireFromString("0.001"),
	}, "1.5")
	venue.addMarket(&SpotMarket{
		MarketID:            "eth-usdt",
		BaseDenom:           "eth",
		QuoteDenom:          "usdt",
		TakerFeeRate:        decimal.RequireFromString("0.001"),
		RelayerFeeShareRate: decimal.RequireFromString("0.4"),
		MinPriceTick:        decimal.RequireFromString("0.000001"),
		MinQuantityTick:     decimal.RequireFromString("0.001"),
	}, "1.5")
	venue.setBook("inj-usdt", SideBuy, level("196900", "7"), level("196540", "5"))
	venue.setBook("eth-usdt", SideSell, level("813.414", "3000"))

	engine := NewEngine(store, venue, "inj1router")
	return store, venue, engine
}

func mustEqual(t *testing.T, got decimal.Decimal, want string, label string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s = %s, want %s", label, got.String(), want)
	}
}

func mustCoinEqual(t *testing.T, got amount.Coin, wantAmount, wantDenom, label string) {
	t.Helper()
	if got.Denom != wantDenom {
		t.Fatalf("%s denom = %s, want %s", label, got.Denom, wantDenom)
	}
	mustEqual(t, got.Amount, wantAmount, label)
}
