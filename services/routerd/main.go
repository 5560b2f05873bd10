package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"swaprouter/native/router"
	"swaprouter/observability/logging"
	telemetry "swaprouter/observability/otel"
	"swaprouter/services/routerd/config"
	"swaprouter/services/routerd/server"
	"swaprouter/services/routerd/storage"
	"swaprouter/services/routerd/venue"
	"swaprouter/storage/boltkv"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/routerd/config.yaml", "path to routerd configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ROUTER_ENV"))

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("routerd: load config: %v", err)
	}

	logger := logging.Setup("routerd", env, logging.Options{FilePath: cfg.LogFile})

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "routerd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
	})
	if err != nil {
		log.Fatalf("routerd: init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	kv, err := boltkv.Open(cfg.StatePath)
	if err != nil {
		log.Fatalf("routerd: open state store: %v", err)
	}
	defer kv.Close()

	var audit *storage.Storage
	if strings.TrimSpace(cfg.AuditPath) != "" {
		audit, err = storage.Open(cfg.AuditPath)
		if err != nil {
			log.Fatalf("routerd: open audit ledger: %v", err)
		}
		defer audit.Close()
	}

	venueClient := venue.NewClient(cfg.Venue.BaseURL, cfg.Venue.RequestTimeout.Duration)
	routerStore := router.NewStore(kv)
	engine := router.NewEngine(routerStore, venueClient, cfg.OwnAddress)
	driver := server.NewDriver(engine, venueClient, audit, logger, cfg.Venue.SettlementPoll.Duration)

	// A crash between order submission and settlement leaves a stranded
	// continuation; venue orders are immediate-or-abort, so it is safe to
	// drop it on startup.
	if inFlight, err := engine.InFlight(); err != nil {
		log.Fatalf("routerd: inspect state: %v", err)
	} else if inFlight {
		logger.Warn("dropping stranded in-flight operation from previous run")
		if err := engine.Abort(); err != nil {
			log.Fatalf("routerd: abort stranded operation: %v", err)
		}
	}

	srv, err := server.New(server.Config{
		ListenAddress: cfg.ListenAddress,
		AdminToken:    cfg.AdminToken,
		RatePerSecond: cfg.RateLimit.PerSecond,
		RateBurst:     cfg.RateLimit.Burst,
	}, engine, routerStore, driver, audit, logger)
	if err != nil {
		log.Fatalf("routerd: server: %v", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("http server error", "error", err)
		os.Exit(1)
	}
}
