// Package config loads the routerd service configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling of human
// readable strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings such as "5s" or "250ms".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for routerd.
type Config struct {
	ListenAddress string      `yaml:"listen"`
	StatePath     string      `yaml:"state"`
	AuditPath     string      `yaml:"audit"`
	AdminToken    string      `yaml:"admin_token"`
	OwnAddress    string      `yaml:"own_address"`
	LogFile       string      `yaml:"log_file"`
	Venue         VenueConfig `yaml:"venue"`
	RateLimit     RateLimit   `yaml:"rate_limit"`
}

// VenueConfig locates the venue REST API.
type VenueConfig struct {
	BaseURL        string   `yaml:"base_url"`
	RequestTimeout Duration `yaml:"request_timeout"`
	SettlementPoll Duration `yaml:"settlement_poll"`
}

// RateLimit throttles the public simulation endpoints.
type RateLimit struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = ":8791"
	}
	if c.Venue.RequestTimeout.Duration == 0 {
		c.Venue.RequestTimeout.Duration = 10 * time.Second
	}
	if c.Venue.SettlementPoll.Duration == 0 {
		c.Venue.SettlementPoll.Duration = 250 * time.Millisecond
	}
	if c.RateLimit.PerSecond == 0 {
		c.RateLimit.PerSecond = 20
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 40
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StatePath) == "" {
		return fmt.Errorf("config: state path required")
	}
	if strings.TrimSpace(c.OwnAddress) == "" {
		return fmt.Errorf("config: own trading address required")
	}
	if strings.TrimSpace(c.Venue.BaseURL) == "" {
		return fmt.Errorf("config: venue base url required")
	}
	return nil
}
