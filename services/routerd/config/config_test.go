package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routerd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
state: /var/lib/routerd/state.db
own_address: inj1router
venue:
  base_url: http://localhost:9900
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":8791" {
		t.Fatalf("unexpected listen address %q", cfg.ListenAddress)
	}
	if cfg.Venue.RequestTimeout.Duration != 10*time.Second {
		t.Fatalf("unexpected request timeout %s", cfg.Venue.RequestTimeout.Duration)
	}
	if cfg.RateLimit.PerSecond != 20 || cfg.RateLimit.Burst != 40 {
		t.Fatalf("unexpected rate limit %+v", cfg.RateLimit)
	}
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, `
state: state.db
own_address: inj1router
venue:
  base_url: http://venue:9900
  request_timeout: 2s
  settlement_poll: 50ms
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Venue.RequestTimeout.Duration != 2*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.Venue.RequestTimeout.Duration)
	}
	if cfg.Venue.SettlementPoll.Duration != 50*time.Millisecond {
		t.Fatalf("unexpected poll %s", cfg.Venue.SettlementPoll.Duration)
	}
}

func TestLoadRejectsMissingVenue(t *testing.T) {
	path := writeConfig(t, `
state: state.db
own_address: inj1router
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}
