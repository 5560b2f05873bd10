// Package server hosts the routerd HTTP surface: public simulation and swap
// endpoints, the admin route table, and operational endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	nativecommon "swaprouter/native/common"
	"swaprouter/native/router"
	"swaprouter/observability"
	"swaprouter/services/routerd/storage"
)

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress string
	AdminToken    string
	RatePerSecond float64
	RateBurst     int
}

// Server hosts the routerd endpoints.
type Server struct {
	cfg        Config
	engine     *router.Engine
	store      *router.Store
	driver     *Driver
	audit      *storage.Storage
	logger     *slog.Logger
	adminToken string
	limiter    *rate.Limiter

	pauseMu sync.RWMutex
	paused  map[string]bool
}

// New constructs the HTTP server around an engine, its route store and the
// settlement driver.
func New(cfg Config, engine *router.Engine, store *router.Store, driver *Driver, audit *storage.Storage, logger *slog.Logger) (*Server, error) {
	if engine == nil || store == nil {
		return nil, fmt.Errorf("engine and store required")
	}
	if driver == nil {
		return nil, fmt.Errorf("driver required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		cfg:        cfg,
		engine:     engine,
		store:      store,
		driver:     driver,
		audit:      audit,
		logger:     logger,
		adminToken: strings.TrimSpace(cfg.AdminToken),
		limiter:    newLimiter(cfg.RatePerSecond, cfg.RateBurst),
		paused:     make(map[string]bool),
	}
	engine.SetPauses(srv)
	return srv, nil
}

// IsPaused reports whether the named module is administratively halted.
func (s *Server) IsPaused(module string) bool {
	s.pauseMu.RLock()
	defer s.pauseMu.RUnlock()
	return s.paused[module]
}

func (s *Server) setPaused(module string, paused bool) {
	s.pauseMu.Lock()
	s.paused[module] = paused
	s.pauseMu.Unlock()
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server not configured")
	}
	mux := http.NewServeMux()
	mux.Handle("/healthz", otelhttp.NewHandler(http.HandlerFunc(s.handleHealth), "routerd.health"))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/v1/simulate/input", otelhttp.NewHandler(s.throttle(http.HandlerFunc(s.handleSimulateInput)), "routerd.simulate.input"))
	mux.Handle("/v1/simulate/output", otelhttp.NewHandler(s.throttle(http.HandlerFunc(s.handleSimulateOutput)), "routerd.simulate.output"))
	mux.Handle("/v1/swaps", otelhttp.NewHandler(s.throttle(http.HandlerFunc(s.handleSwaps)), "routerd.swaps"))
	mux.Handle("/v1/swaps/", otelhttp.NewHandler(s.throttle(http.HandlerFunc(s.handleSwapByID)), "routerd.swap"))
	mux.Handle("/admin/routes", otelhttp.NewHandler(s.requireAdmin(http.HandlerFunc(s.handleRoutes)), "routerd.admin.routes"))
	mux.Handle("/admin/config", otelhttp.NewHandler(s.requireAdmin(http.HandlerFunc(s.handleConfig)), "routerd.admin.config"))
	mux.Handle("/admin/pause", otelhttp.NewHandler(s.requireAdmin(http.HandlerFunc(s.handlePause)), "routerd.admin.pause"))

	srv := &http.Server{Addr: s.cfg.ListenAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", "address", s.cfg.ListenAddress)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type simulateRequest struct {
	SourceDenom string `json:"source_denom"`
	TargetDenom string `json:"target_denom"`
	Quantity    string `json:"quantity"`
}

type simulateResponse struct {
	ResultQuantity string    `json:"result_quantity"`
	ResultDenom    string    `json:"result_denom"`
	ExpectedFees   []feeJSON `json:"expected_fees"`
}

type feeJSON struct {
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
}

func decodeSimulateRequest(r *http.Request) (simulateRequest, decimal.Decimal, error) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, decimal.Decimal{}, fmt.Errorf("invalid payload")
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(req.Quantity))
	if err != nil {
		return req, decimal.Decimal{}, fmt.Errorf("invalid quantity")
	}
	return req, qty, nil
}

func (s *Server) handleSimulateInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, qty, err := decodeSimulateRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := s.engine.Resolver().EstimateByInput(req.SourceDenom, req.TargetDenom, qty)
	observability.Metrics().RecordSimulation("input", err)
	if err != nil {
		s.writeRouterError(w, err)
		return
	}
	s.writeSimulation(w, result)
}

func (s *Server) handleSimulateOutput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, qty, err := decodeSimulateRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := s.engine.Resolver().EstimateByTarget(req.SourceDenom, req.TargetDenom, qty)
	observability.Metrics().RecordSimulation("output", err)
	if err != nil {
		s.writeRouterError(w, err)
		return
	}
	s.writeSimulation(w, result)
}

func (s *Server) writeSimulation(w http.ResponseWriter, result *router.EstimationResult) {
	resp := simulateResponse{
		ResultQuantity: result.ResultQuantity.Amount.String(),
		ResultDenom:    result.ResultQuantity.Denom,
		ExpectedFees:   make([]feeJSON, 0, len(result.ExpectedFees)),
	}
	for _, fee := range result.ExpectedFees {
		resp.ExpectedFees = append(resp.ExpectedFees, feeJSON{Amount: fee.Amount.String(), Denom: fee.Denom})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type swapRequest struct {
	Sender        string `json:"sender"`
	SourceDenom   string `json:"source_denom"`
	Quantity      string `json:"quantity"`
	TargetDenom   string `json:"target_denom"`
	MinQuantity   string `json:"min_quantity"`
	ExactQuantity string `json:"exact_quantity"`
}

func (s *Server) handleSwaps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.startSwap(w, r)
	case http.MethodGet:
		s.listSwaps(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) startSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(req.Quantity))
	if err != nil {
		http.Error(w, "invalid quantity", http.StatusBadRequest)
		return
	}
	var min decimal.Decimal
	exact := strings.TrimSpace(req.ExactQuantity) != ""
	if exact {
		min, err = decimal.NewFromString(strings.TrimSpace(req.ExactQuantity))
	} else {
		min, err = decimal.NewFromString(strings.TrimSpace(req.MinQuantity))
	}
	if err != nil {
		http.Error(w, "invalid target quantity", http.StatusBadRequest)
		return
	}
	id := uuid.NewString()
	outcome, err := s.driver.RunSwap(r.Context(), SwapParams{
		ID:          id,
		Sender:      strings.TrimSpace(req.Sender),
		SourceDenom: strings.TrimSpace(req.SourceDenom),
		Quantity:    qty,
		TargetDenom: strings.TrimSpace(req.TargetDenom),
		MinQuantity: min,
		Exact:       exact,
	})
	if err != nil {
		s.writeRouterError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"id":              id,
		"result_quantity": outcome.Amount.String(),
		"result_denom":    outcome.Denom,
	})
}

func (s *Server) listSwaps(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		http.Error(w, "audit ledger disabled", http.StatusNotFound)
		return
	}
	records, err := s.audit.RecentSwaps(r.Context(), 50)
	if err != nil {
		s.logger.Error("list swaps", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func (s *Server) handleSwapByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.audit == nil {
		http.Error(w, "audit ledger disabled", http.StatusNotFound)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/swaps/")
	record, err := s.audit.Swap(r.Context(), id)
	if err != nil {
		http.Error(w, "swap not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

type routeJSON struct {
	SourceDenom string   `json:"source_denom"`
	TargetDenom string   `json:"target_denom"`
	Steps       []string `json:"steps"`
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		routes, err := s.store.Routes()
		if err != nil {
			s.logger.Error("list routes", "error", err)
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		out := make([]routeJSON, 0, len(routes))
		for _, route := range routes {
			out = append(out, routeJSON{SourceDenom: route.SourceDenom, TargetDenom: route.TargetDenom, Steps: route.Steps})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	case http.MethodPut:
		var req routeJSON
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		route := &router.SwapRoute{SourceDenom: req.SourceDenom, TargetDenom: req.TargetDenom, Steps: req.Steps}
		if err := s.store.SetRoute(route); err != nil {
			s.writeRouterError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		source := strings.TrimSpace(r.URL.Query().Get("source"))
		target := strings.TrimSpace(r.URL.Query().Get("target"))
		if source == "" || target == "" {
			http.Error(w, "source and target required", http.StatusBadRequest)
			return
		}
		if err := s.store.DeleteRoute(source, target); err != nil {
			s.logger.Error("delete route", "error", err)
			http.Error(w, "delete failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := s.store.Config()
		if err != nil {
			s.writeRouterError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"admin":         cfg.Admin,
			"fee_recipient": cfg.FeeRecipient,
		})
	case http.MethodPut:
		var req struct {
			Admin        string `json:"admin"`
			FeeRecipient string `json:"fee_recipient"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if err := s.store.SetConfig(&router.Config{Admin: req.Admin, FeeRecipient: req.FeeRecipient}); err != nil {
			s.writeRouterError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Module string `json:"module"`
		Paused bool   `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	module := strings.TrimSpace(req.Module)
	if module == "" {
		module = "router"
	}
	s.setPaused(module, req.Paused)
	s.logger.Info("module pause switched", "module", module, "paused", req.Paused)
	w.WriteHeader(http.StatusNoContent)
}

// writeRouterError maps router sentinel errors onto HTTP status codes.
func (s *Server) writeRouterError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, router.ErrNoRoute),
		errors.Is(err, router.ErrConfigMissing):
		status = http.StatusNotFound
	case errors.Is(err, router.ErrSameDenom),
		errors.Is(err, router.ErrInvalidSwapDenom),
		errors.Is(err, router.ErrNonPositiveQuantity),
		errors.Is(err, router.ErrSingleDenomRequired),
		errors.Is(err, router.ErrRouteNil),
		errors.Is(err, router.ErrRouteDenomRequired),
		errors.Is(err, router.ErrEmptyRoute),
		errors.Is(err, router.ErrEmptyRouteStep),
		errors.Is(err, router.ErrDuplicateRouteStep):
		status = http.StatusBadRequest
	case errors.Is(err, router.ErrInsufficientLiquidity),
		errors.Is(err, router.ErrAmountTooHigh),
		errors.Is(err, router.ErrInsufficientInput),
		errors.Is(err, router.ErrMinimumNotReached):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, router.ErrSwapInFlight):
		status = http.StatusConflict
	case errors.Is(err, nativecommon.ErrModulePaused):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}
