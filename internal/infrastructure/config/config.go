package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the MQTT probe.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Broker        BrokerConfig   `yaml:"broker"`
	Auth          AuthConfig     `yaml:"auth"`
	Client        ClientConfig   `yaml:"client"`
	Subscriptions []Subscription `yaml:"subscriptions"`
	Recorder      RecorderConfig `yaml:"recorder"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// BrokerConfig contains MQTT broker connection details.
type BrokerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	TLS            bool   `yaml:"tls"`
	ConnectTimeout int    `yaml:"connect_timeout"`
}

// AuthConfig contains MQTT authentication credentials.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ClientConfig contains MQTT client session settings.
type ClientConfig struct {
	ClientID       string `yaml:"client_id"`
	CleanStart     bool   `yaml:"clean_start"`
	KeepAlive      int    `yaml:"keep_alive"`
	PingTimeout    int    `yaml:"ping_timeout"`
	RequestTimeout int    `yaml:"request_timeout"`
	QueueCapacity  int    `yaml:"queue_capacity"`
}

// Subscription is one topic filter to subscribe to on connect.
type Subscription struct {
	TopicFilter string `yaml:"topic_filter"`
	QoS         int    `yaml:"qos"`
}

// RecorderConfig contains InfluxDB message recording settings.
type RecorderConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_BROKER_HOST, GRAYLOGIC_AUTH_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host:           "localhost",
			Port:           1883,
			ConnectTimeout: 10,
		},
		Client: ClientConfig{
			CleanStart:     true,
			KeepAlive:      60,
			PingTimeout:    10,
			RequestTimeout: 30,
			QueueCapacity:  64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Broker
	if v := os.Getenv("GRAYLOGIC_BROKER_HOST"); v != "" {
		cfg.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_BROKER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Broker.Port = port
		}
	}

	// Auth
	if v := os.Getenv("GRAYLOGIC_AUTH_USERNAME"); v != "" {
		cfg.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_AUTH_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}

	// Client
	if v := os.Getenv("GRAYLOGIC_CLIENT_ID"); v != "" {
		cfg.Client.ClientID = v
	}

	// Recorder
	if v := os.Getenv("GRAYLOGIC_RECORDER_TOKEN"); v != "" {
		cfg.Recorder.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Broker validation
	if c.Broker.Host == "" {
		errs = append(errs, "broker.host is required")
	}
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		errs = append(errs, "broker.port must be between 1 and 65535")
	}

	// Client validation
	if c.Client.KeepAlive < 0 {
		errs = append(errs, "client.keep_alive must not be negative")
	}
	if c.Client.QueueCapacity < 1 {
		errs = append(errs, "client.queue_capacity must be at least 1")
	}

	// Subscription validation
	for i, sub := range c.Subscriptions {
		if sub.TopicFilter == "" {
			errs = append(errs, fmt.Sprintf("subscriptions[%d].topic_filter is required", i))
		}
		if sub.QoS < 0 || sub.QoS > 2 {
			errs = append(errs, fmt.Sprintf("subscriptions[%d].qos must be 0, 1, or 2", i))
		}
	}

	// Recorder validation
	if c.Recorder.Enabled {
		if c.Recorder.URL == "" {
			errs = append(errs, "recorder.url is required when recorder is enabled")
		}
		if c.Recorder.Token == "" {
			errs = append(errs, "recorder.token is required when recorder is enabled (set GRAYLOGIC_RECORDER_TOKEN environment variable)")
		}
		if c.Recorder.Org == "" {
			errs = append(errs, "recorder.org is required when recorder is enabled")
		}
		if c.Recorder.Bucket == "" {
			errs = append(errs, "recorder.bucket is required when recorder is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetConnectTimeout returns the broker connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Broker.ConnectTimeout) * time.Second
}

// GetKeepAlive returns the keepalive interval as a Duration.
func (c *Config) GetKeepAlive() time.Duration {
	return time.Duration(c.Client.KeepAlive) * time.Second
}

// GetPingTimeout returns the ping response timeout as a Duration.
func (c *Config) GetPingTimeout() time.Duration {
	return time.Duration(c.Client.PingTimeout) * time.Second
}

// GetRequestTimeout returns the request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Client.RequestTimeout) * time.Second
}
