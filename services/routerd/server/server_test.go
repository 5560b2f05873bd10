package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"swaprouter/native/router"
	"swaprouter/services/routerd/storage"
	"swaprouter/storage/boltkv"
)

type bookKey struct {
	marketID string
	side     router.OrderSide
}

// stubVenue serves canned markets and books and feeds queued settlement
// reports back to the driver.
type stubVenue struct {
	markets     map[string]*router.SpotMarket
	books       map[bookKey][]router.PriceLevel
	multipliers map[string]decimal.Decimal
	balances    map[string]decimal.Decimal

	orders      []*router.Order
	transfers   int
	settlements []*router.TradeReport
}

func (v *stubVenue) SpotMarket(marketID string) (*router.SpotMarket, bool, error) {
	market, ok := v.markets[marketID]
	return market, ok, nil
}

func (v *stubVenue) OrderBookSide(marketID string, side router.OrderSide, cap router.OrderBookCap) ([]router.PriceLevel, error) {
	return v.books[bookKey{marketID: marketID, side: side}], nil
}

func (v *stubVenue) FeeMultiplier(marketID string) (decimal.Decimal, error) {
	return v.multipliers[marketID], nil
}

func (v *stubVenue) Balance(denom string) (decimal.Decimal, error) {
	return v.balances[denom], nil
}

func (v *stubVenue) SubmitAtomicOrder(order *router.Order) error {
	v.orders = append(v.orders, order)
	return nil
}

func (v *stubVenue) Transfer(denom string, quantity decimal.Decimal, destination string) error {
	v.transfers++
	return nil
}

func (v *stubVenue) FetchSettlement(ctx context.Context) (*router.TradeReport, bool, error) {
	if len(v.settlements) == 0 {
		return nil, false, nil
	}
	report := v.settlements[0]
	v.settlements = v.settlements[1:]
	return report, true, nil
}

func dec(raw string) decimal.Decimal { return decimal.RequireFromString(raw) }

func newMarket(id, base string) *router.SpotMarket {
	return &router.SpotMarket{
		MarketID:            id,
		BaseDenom:           base,
		QuoteDenom:          "usdt",
		TakerFeeRate:        dec("0.001"),
		RelayerFeeShareRate: dec("0.4"),
		MinPriceTick:        dec("0.000001"),
		MinQuantityTick:     dec("0.001"),
	}
}

// newFixture wires a server over a real bolt-backed store with the two-hop
// inj -> usdt -> eth route.
func newFixture(t *testing.T) (*Server, *stubVenue) {
	t.Helper()
	kv, err := boltkv.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open bolt store: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	store := router.NewStore(kv)
	if err := store.SetConfig(&router.Config{Admin: "inj1admin", FeeRecipient: "inj1relayer"}); err != nil {
		t.Fatalf("set config: %v", err)
	}
	if err := store.SetRoute(&router.SwapRoute{SourceDenom: "inj", TargetDenom: "eth", Steps: []string{"inj-usdt", "eth-usdt"}}); err != nil {
		t.Fatalf("set route: %v", err)
	}

	venue := &stubVenue{
		markets:     map[string]*router.SpotMarket{"inj-usdt": newMarket("inj-usdt", "inj"), "eth-usdt": newMarket("eth-usdt", "eth")},
		multipliers: map[string]decimal.Decimal{"inj-usdt": dec("1.5"), "eth-usdt": dec("1.5")},
		balances:    map[string]decimal.Decimal{"usdt": dec("2357458.5")},
		books: map[bookKey][]router.PriceLevel{
			{marketID: "inj-usdt", side: router.SideBuy}: {
				{Price: dec("196900"), Quantity: dec("7")},
				{Price: dec("196540"), Quantity: dec("5")},
			},
			{marketID: "eth-usdt", side: router.SideSell}: {
				{Price: dec("813.414"), Quantity: dec("3000")},
			},
		},
	}

	audit, err := storage.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open audit ledger: %v", err)
	}
	t.Cleanup(func() { audit.Close() })

	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	engine := router.NewEngine(store, venue, "inj1router")
	driver := NewDriver(engine, venue, audit, logger, time.Millisecond)
	srv, err := New(Config{ListenAddress: ":0", AdminToken: "secret"}, engine, store, driver, audit, logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, venue
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func TestSimulateInputEndpoint(t *testing.T) {
	srv, _ := newFixture(t)

	body := `{"source_denom":"inj","target_denom":"eth","quantity":"12"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/simulate/input", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleSimulateInput(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp simulateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ResultQuantity != "2893.886" || resp.ResultDenom != "eth" {
		t.Fatalf("unexpected result %+v", resp)
	}
	if len(resp.ExpectedFees) != 2 || resp.ExpectedFees[0].Amount != "3541.5" || resp.ExpectedFees[1].Amount != "3530.891412" {
		t.Fatalf("unexpected fees %+v", resp.ExpectedFees)
	}
}

func TestSimulateInputNoRoute(t *testing.T) {
	srv, _ := newFixture(t)

	body := `{"source_denom":"inj","target_denom":"atom","quantity":"12"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/simulate/input", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleSimulateInput(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSwapEndpointRunsToCompletion(t *testing.T) {
	srv, venue := newFixture(t)
	venue.settlements = []*router.TradeReport{
		{Quantity: "12000000000000000000", AveragePrice: "196750000000000000000000", Fee: "3541500000000000000000"},
		{Quantity: "2893886000000000000000", AveragePrice: "813414000000000000000", Fee: "3530891412000000000000"},
	}

	body := `{"sender":"inj1sender","source_denom":"inj","quantity":"12","target_denom":"eth","min_quantity":"2800"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/swaps", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleSwaps(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["result_quantity"] != "2893.886" || resp["result_denom"] != "eth" {
		t.Fatalf("unexpected result %+v", resp)
	}
	if len(venue.orders) != 2 || venue.transfers != 1 {
		t.Fatalf("unexpected venue calls: %d orders, %d transfers", len(venue.orders), venue.transfers)
	}

	record, err := srv.audit.Swap(context.Background(), resp["id"])
	if err != nil {
		t.Fatalf("load audit record: %v", err)
	}
	if record.Status != storage.StatusCompleted || record.Result != "2893.886" {
		t.Fatalf("unexpected audit record %+v", record)
	}
}

func TestSwapEndpointBelowMinimumFails(t *testing.T) {
	srv, venue := newFixture(t)
	venue.settlements = []*router.TradeReport{
		{Quantity: "12000000000000000000", AveragePrice: "196750000000000000000000", Fee: "3541500000000000000000"},
		{Quantity: "2893886000000000000000", AveragePrice: "813414000000000000000", Fee: "3530891412000000000000"},
	}

	body := `{"sender":"inj1sender","source_denom":"inj","quantity":"12","target_denom":"eth","min_quantity":"2900"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/swaps", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleSwaps(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	// The driver aborts the stranded continuation on failure.
	if inFlight, err := srv.engine.InFlight(); err != nil || inFlight {
		t.Fatalf("engine should be idle after abort, inFlight=%v err=%v", inFlight, err)
	}
	if venue.transfers != 0 {
		t.Fatal("no transfer should happen below the minimum")
	}
}

func TestSwapEndpointPaused(t *testing.T) {
	srv, _ := newFixture(t)
	srv.setPaused("router", true)

	body := `{"sender":"inj1sender","source_denom":"inj","quantity":"12","target_denom":"eth","min_quantity":"2800"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/swaps", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleSwaps(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	srv, _ := newFixture(t)
	handler := srv.requireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/routes", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/routes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/routes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with valid token, got %d", rec.Code)
	}
}

func TestAdminRoutesCRUD(t *testing.T) {
	srv, _ := newFixture(t)

	put := httptest.NewRequest(http.MethodPut, "/admin/routes",
		strings.NewReader(`{"source_denom":"atom","target_denom":"usdt","steps":["atom-usdt"]}`))
	rec := httptest.NewRecorder()
	srv.handleRoutes(rec, put)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("put route: %d %s", rec.Code, rec.Body.String())
	}

	list := httptest.NewRequest(http.MethodGet, "/admin/routes", nil)
	rec = httptest.NewRecorder()
	srv.handleRoutes(rec, list)
	var routes []routeJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &routes); err != nil {
		t.Fatalf("decode routes: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}

	del := httptest.NewRequest(http.MethodDelete, "/admin/routes?source=atom&target=usdt", nil)
	rec = httptest.NewRecorder()
	srv.handleRoutes(rec, del)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete route: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.handleRoutes(rec, httptest.NewRequest(http.MethodGet, "/admin/routes", nil))
	routes = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &routes); err != nil {
		t.Fatalf("decode routes: %v", err)
	}
	if len(routes) != 1 {
		t.Fatalf("expected 1 route after delete, got %d", len(routes))
	}
}

func TestAdminRoutesRejectsInvalid(t *testing.T) {
	srv, _ := newFixture(t)
	put := httptest.NewRequest(http.MethodPut, "/admin/routes",
		strings.NewReader(`{"source_denom":"atom","target_denom":"atom","steps":["m"]}`))
	rec := httptest.NewRecorder()
	srv.handleRoutes(rec, put)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid route, got %d", rec.Code)
	}
}

func TestThrottleRejectsBurstOverflow(t *testing.T) {
	srv, _ := newFixture(t)
	srv.limiter = newLimiter(1, 1)
	handler := srv.throttle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/simulate/input", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/simulate/input", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be throttled, got %d", rec.Code)
	}
}
