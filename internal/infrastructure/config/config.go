package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Canopy Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	Poller   PollerConfig   `yaml:"poller"`
	Workflow WorkflowConfig `yaml:"workflows"`
	Sunlight SunlightConfig `yaml:"sunlight"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// PollerConfig contains poll scheduler settings.
//
// DomainSpacingMS is the mandatory delay between consecutive cloud calls
// within one rate-limit domain (one vendor account). Violating it causes
// upstream throttling that degrades every controller on that account, so
// this is a correctness setting, not a tuning knob.
type PollerConfig struct {
	// Interval is how often the poll job fires (seconds).
	Interval int `yaml:"interval"`

	// RecencyWindow is how long a controller stays poll-eligible after it
	// was last seen, even when not currently online (minutes).
	RecencyWindow int `yaml:"recency_window"`

	// DomainSpacingMS is the inter-call delay within a rate-limit domain (milliseconds).
	DomainSpacingMS int `yaml:"domain_spacing_ms"`

	// MaxConcurrentDomains bounds how many rate-limit domains are polled in parallel.
	MaxConcurrentDomains int `yaml:"max_concurrent_domains"`

	// ControllerTimeout is the per-controller deadline within one invocation (seconds).
	ControllerTimeout int `yaml:"controller_timeout"`
}

// WorkflowConfig contains workflow engine settings.
type WorkflowConfig struct {
	// Interval is how often the workflow job fires (seconds).
	Interval int `yaml:"interval"`

	// MaxDelaySeconds caps delay nodes; longer delays are treated as zero
	// so a single tick cannot be held hostage by one graph.
	MaxDelaySeconds int `yaml:"max_delay_seconds"`
}

// SunlightConfig contains sunrise/sunset execution settings.
type SunlightConfig struct {
	// Interval is how often the sunlight job fires (seconds).
	Interval int `yaml:"interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	// EncryptionKey is the hex-encoded 256-bit key used to decrypt stored
	// controller credentials. Required; set via CANOPY_ENCRYPTION_KEY.
	EncryptionKey string `yaml:"encryption_key"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CANOPY_SECTION_KEY
// For example: CANOPY_DATABASE_PATH, CANOPY_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Canopy",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/canopy.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Poller: PollerConfig{
			Interval:             300,
			RecencyWindow:        30,
			DomainSpacingMS:      1500,
			MaxConcurrentDomains: 4,
			ControllerTimeout:    30,
		},
		Workflow: WorkflowConfig{
			Interval:        60,
			MaxDelaySeconds: 30,
		},
		Sunlight: SunlightConfig{
			Interval: 60,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "canopy-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CANOPY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CANOPY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("CANOPY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CANOPY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CANOPY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("CANOPY_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("CANOPY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - encryption key (IMPORTANT: always set in production)
	if v := os.Getenv("CANOPY_ENCRYPTION_KEY"); v != "" {
		cfg.Security.EncryptionKey = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Poller.DomainSpacingMS < 0 {
		errs = append(errs, "poller.domain_spacing_ms must not be negative")
	}
	if c.Poller.MaxConcurrentDomains < 1 {
		errs = append(errs, "poller.max_concurrent_domains must be at least 1")
	}

	// The encryption key guards stored cloud-account credentials. Without it
	// the scheduler cannot resolve rate-limit domains, so a missing or
	// malformed key is the one configuration error that fails the whole run.
	const encryptionKeyHexLen = 64 // 32 bytes, hex-encoded
	switch {
	case c.Security.EncryptionKey == "":
		errs = append(errs, "security.encryption_key is required (set CANOPY_ENCRYPTION_KEY environment variable)")
	case len(c.Security.EncryptionKey) != encryptionKeyHexLen:
		errs = append(errs, "security.encryption_key must be 64 hex characters (256-bit key)")
	default:
		if _, err := hex.DecodeString(c.Security.EncryptionKey); err != nil {
			errs = append(errs, "security.encryption_key must be valid hex")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// EncryptionKeyBytes returns the decoded credential encryption key.
// Validate must have passed before calling this.
func (c *Config) EncryptionKeyBytes() []byte {
	key, _ := hex.DecodeString(c.Security.EncryptionKey)
	return key
}

// PollInterval returns the poll job cadence as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poller.Interval) * time.Second
}

// DomainSpacing returns the intra-domain call spacing as a Duration.
func (c *Config) DomainSpacing() time.Duration {
	return time.Duration(c.Poller.DomainSpacingMS) * time.Millisecond
}

// ControllerTimeout returns the per-controller poll deadline as a Duration.
func (c *Config) ControllerTimeout() time.Duration {
	return time.Duration(c.Poller.ControllerTimeout) * time.Second
}

// RecencyWindow returns the poll eligibility recency window as a Duration.
func (c *Config) RecencyWindow() time.Duration {
	return time.Duration(c.Poller.RecencyWindow) * time.Minute
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
