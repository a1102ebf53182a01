package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Kommander bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Device    DeviceConfig    `yaml:"device"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// InstanceConfig identifies this bridge instance.
type InstanceConfig struct {
	// ID is used in MQTT topics and health messages. Must be topic-safe.
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DeviceConfig contains the Kommander device connection settings.
type DeviceConfig struct {
	// URL is the device websocket address, e.g. "ws://192.168.0.50:8089/".
	// An invalid URL is not a load error: the bridge starts and reports a
	// bad-configuration status until it is corrected.
	URL string `yaml:"url"`

	// Reconnect re-opens the connection 5 seconds after it drops.
	// Default: true
	Reconnect bool `yaml:"reconnect"`

	// DebugMessages logs every frame sent and received at debug level.
	DebugMessages bool `yaml:"debug_messages"`

	// ResetVariables clears exported variables on connect.
	// Default: true
	ResetVariables bool `yaml:"reset_variables"`

	// AppendNewLine is accepted for compatibility with existing control
	// surface profiles. It has no effect on the wire format.
	AppendNewLine bool `yaml:"append_new_line"`

	// ToggleEncoding is "implicit" (bare trigger) or "explicit" (target
	// state sent with toggle commands). Default: "implicit"
	ToggleEncoding string `yaml:"toggle_encoding"`

	// HandshakeTimeout bounds the websocket opening handshake in seconds.
	// Default: 10
	HandshakeTimeout int `yaml:"handshake_timeout"`

	// ReadLimit caps inbound frame size in bytes. 0 disables the limit.
	ReadLimit int64 `yaml:"read_limit"`

	// HealthInterval is how often health is published to MQTT, in seconds.
	// Default: 30
	HealthInterval int `yaml:"health_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetention is how many days of facet history to keep. 0 keeps
	// everything.
	HistoryRetention int `yaml:"history_retention"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the API's websocket push channel.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: KOMMANDER_SECTION_KEY
// For example: KOMMANDER_DEVICE_URL, KOMMANDER_API_PORT
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
		Instance: InstanceConfig{
			ID:   "kommander-01",
			Name: "Kommander",
		},
		Device: DeviceConfig{
			Reconnect:        true,
			ResetVariables:   true,
			AppendNewLine:    true,
			ToggleEncoding:   "implicit",
			HandshakeTimeout: 10,
			HealthInterval:   30,
		},
		Database: DatabaseConfig{
			Enabled:          true,
			Path:             "./data/kommander.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryRetention: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "kommander-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: KOMMANDER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("KOMMANDER_DEVICE_URL"); v != "" {
		cfg.Device.URL = v
	}
	if v, ok := envBool("KOMMANDER_DEVICE_RECONNECT"); ok {
		cfg.Device.Reconnect = v
	}
	if v, ok := envBool("KOMMANDER_DEVICE_DEBUG_MESSAGES"); ok {
		cfg.Device.DebugMessages = v
	}

	// Database
	if v := os.Getenv("KOMMANDER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("KOMMANDER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("KOMMANDER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("KOMMANDER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("KOMMANDER_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("KOMMANDER_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("KOMMANDER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("KOMMANDER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// envBool reads a boolean environment variable. ok is false when unset or
// unparsable.
func envBool(key string) (value bool, ok bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// Validate checks the configuration for errors.
//
// The device URL is deliberately not checked here; see DeviceConfig.URL.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Instance.ID == "" {
		errs = append(errs, "instance.id is required")
	} else if strings.ContainsAny(c.Instance.ID, "/+# ") {
		errs = append(errs, "instance.id must not contain '/', '+', '#' or spaces")
	}

	switch strings.ToLower(c.Device.ToggleEncoding) {
	case "", "implicit", "explicit":
	default:
		errs = append(errs, "device.toggle_encoding must be implicit or explicit")
	}
	if c.Device.HandshakeTimeout < 0 {
		errs = append(errs, "device.handshake_timeout must not be negative")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when MQTT is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when InfluxDB is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when InfluxDB is enabled")
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, "metrics.path must start with '/'")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// GetHandshakeTimeout returns the device handshake timeout as a Duration.
func (c *Config) GetHandshakeTimeout() time.Duration {
	return time.Duration(c.Device.HandshakeTimeout) * time.Second
}

// GetHealthInterval returns the health publish interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Device.HealthInterval) * time.Second
}
