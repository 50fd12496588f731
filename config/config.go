package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/strayaid/rescuedispatch/core/dispatch"
)

// Config is the root service configuration.
type Config struct {
	HTTP       HTTPConfig         `json:"http"`
	Store      StoreConfig        `json:"store"`
	Registry   CollaboratorConfig `json:"registry"`
	Reports    CollaboratorConfig `json:"reports"`
	Notifier   NotifierConfig     `json:"notifier"`
	Events     EventsConfig       `json:"events"`
	Metrics    MetricsConfig      `json:"metrics"`
	Dispatch   dispatch.Config    `json:"dispatch"`
	Redispatch RedispatchConfig   `json:"redispatch"`
	Logging    LoggingConfig      `json:"logging"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// StoreConfig selects the assignment store backend.
type StoreConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `json:"backend"`
	DSN     string `json:"dsn"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "memory":
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("store: postgres backend requires a dsn")
		}
	default:
		return fmt.Errorf("store: unknown backend %s", c.Backend)
	}
	return nil
}

// CollaboratorConfig points at an external collaborator service. The
// "memory" backend serves fixture data for development and tests.
type CollaboratorConfig struct {
	// Backend is "http" or "memory".
	Backend string `json:"backend"`
	BaseURL string `json:"base_url"`
}

// SetDefaults applies sane defaults.
func (c *CollaboratorConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// Validate checks mandatory fields.
func (c CollaboratorConfig) Validate() error {
	switch c.Backend {
	case "memory":
	case "http":
		if c.BaseURL == "" {
			return fmt.Errorf("collaborator: http backend requires a base_url")
		}
	default:
		return fmt.Errorf("collaborator: unknown backend %s", c.Backend)
	}
	return nil
}

// NotifierConfig configures the MQTT notification transport.
type NotifierConfig struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

// SetDefaults applies sane defaults.
func (c *NotifierConfig) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "rescuedispatch"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "rescue/notify"
	}
}

// Validate checks mandatory fields.
func (c NotifierConfig) Validate() error {
	if c.Enabled && c.Broker == "" {
		return fmt.Errorf("notifier: enabled without a broker")
	}
	return nil
}

// EventsConfig configures the AMQP lifecycle event publisher.
type EventsConfig struct {
	Enabled  bool   `json:"enabled"`
	URL      string `json:"url"`
	Exchange string `json:"exchange"`
}

// SetDefaults applies sane defaults.
func (c *EventsConfig) SetDefaults() {
	if c.Exchange == "" {
		c.Exchange = "rescue.lifecycle"
	}
}

// Validate checks mandatory fields.
func (c EventsConfig) Validate() error {
	if c.Enabled && c.URL == "" {
		return fmt.Errorf("events: enabled without a broker url")
	}
	return nil
}

// MetricsConfig configures telemetry sinks.
type MetricsConfig struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// SetDefaults applies sane defaults.
func (c *MetricsConfig) SetDefaults() {
	if c.PrometheusPort == "" {
		c.PrometheusPort = "9090"
	}
}

// RedispatchConfig configures the scheduled stale-assignment sweep.
type RedispatchConfig struct {
	Enabled           bool   `json:"enabled"`
	Schedule          string `json:"schedule"`
	StaleAfterMinutes int    `json:"stale_after_minutes"`
}

// SetDefaults applies sane defaults.
func (c *RedispatchConfig) SetDefaults() {
	if c.Schedule == "" {
		c.Schedule = "@every 5m"
	}
	if c.StaleAfterMinutes == 0 {
		c.StaleAfterMinutes = 30
	}
}

// Load reads the configuration file, applies RD_-prefixed environment
// overrides, then defaults and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, e.g. RD_STORE__DSN.
	if err := k.Load(env.Provider("RD_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "rd_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.HTTP.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.Registry.SetDefaults()
	cfg.Reports.SetDefaults()
	cfg.Notifier.SetDefaults()
	cfg.Events.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.Redispatch.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Registry.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Reports.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Notifier.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Events.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
