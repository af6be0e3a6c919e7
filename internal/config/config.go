package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-sentinel/internal/utils"
)

// Config captures the settings required to boot the sentinel engine.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the gRPC control surface and metrics listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// BridgeConfig configures the per-tick socket poll of the anomaly process.
type BridgeConfig struct {
	Address         string        `yaml:"address"`
	Token           string        `yaml:"token"`
	PollInterval    time.Duration `yaml:"pollInterval"`
	DialTimeout     time.Duration `yaml:"dialTimeout"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	MaxPayloadBytes int64         `yaml:"maxPayloadBytes"`
	RequiredFields  []string      `yaml:"requiredFields"`
}

// AlertsConfig sets band thresholds and the feedback window.
type AlertsConfig struct {
	SuspiciousThreshold float64       `yaml:"suspiciousThreshold"`
	HighThreshold       float64       `yaml:"highThreshold"`
	FeedbackWindow      time.Duration `yaml:"feedbackWindow"`
}

// LedgerConfig locates the feedback ledger file.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SENTINEL_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, utils.NewAppError("config.Load", fmt.Sprintf("config file %s not found", path), err)
			}
			return nil, utils.NewAppError("config.Load", "read config", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, utils.NewAppError("config.Load", "parse config", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Bridge.Address == "" {
		return fmt.Errorf("bridge.address is required")
	}
	if c.Bridge.PollInterval <= 0 {
		return fmt.Errorf("bridge.pollInterval must be positive")
	}
	if c.Bridge.ReadTimeout <= 0 || c.Bridge.DialTimeout <= 0 {
		return fmt.Errorf("bridge timeouts must be positive")
	}
	if c.Alerts.SuspiciousThreshold < 0 || c.Alerts.HighThreshold > 100 {
		return fmt.Errorf("alert thresholds must lie within [0,100]")
	}
	if c.Alerts.SuspiciousThreshold >= c.Alerts.HighThreshold {
		return fmt.Errorf("alerts.suspiciousThreshold (%v) must be below alerts.highThreshold (%v)",
			c.Alerts.SuspiciousThreshold, c.Alerts.HighThreshold)
	}
	if c.Alerts.FeedbackWindow <= 0 {
		return fmt.Errorf("alerts.feedbackWindow must be positive")
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50061",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Bridge: BridgeConfig{
			Address:         "127.0.0.1:5055",
			Token:           "ping\n",
			PollInterval:    time.Second,
			DialTimeout:     500 * time.Millisecond,
			ReadTimeout:     750 * time.Millisecond,
			MaxPayloadBytes: 64 << 10,
			RequiredFields:  []string{"confidence"},
		},
		Alerts: AlertsConfig{
			SuspiciousThreshold: 40,
			HighThreshold:       60,
			FeedbackWindow:      15 * time.Second,
		},
		Ledger:  LedgerConfig{Path: "feedback_log.csv"},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENTINEL_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SENTINEL_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("SENTINEL_BRIDGE_ADDRESS"); v != "" {
		cfg.Bridge.Address = v
	}
	if v := os.Getenv("SENTINEL_BRIDGE_TOKEN"); v != "" {
		cfg.Bridge.Token = v
	}
	if v := os.Getenv("SENTINEL_BRIDGE_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Bridge.PollInterval = d
		}
	}
	if v := os.Getenv("SENTINEL_BRIDGE_DIAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Bridge.DialTimeout = d
		}
	}
	if v := os.Getenv("SENTINEL_BRIDGE_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Bridge.ReadTimeout = d
		}
	}
	if v := os.Getenv("SENTINEL_BRIDGE_MAX_PAYLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Bridge.MaxPayloadBytes = n
		}
	}
	if v := os.Getenv("SENTINEL_ALERTS_SUSPICIOUS_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Alerts.SuspiciousThreshold = f
		}
	}
	if v := os.Getenv("SENTINEL_ALERTS_HIGH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Alerts.HighThreshold = f
		}
	}
	if v := os.Getenv("SENTINEL_ALERTS_FEEDBACK_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Alerts.FeedbackWindow = d
		}
	}
	if v := os.Getenv("SENTINEL_LEDGER_PATH"); v != "" {
		cfg.Ledger.Path = v
	}
	if v := os.Getenv("SENTINEL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SENTINEL_LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}
}
