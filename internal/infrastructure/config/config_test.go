package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
instance:
  id: "stage-left"
device:
  url: "ws://192.168.0.50:8089/"
  debug_messages: true
  toggle_encoding: "explicit"
database:
  path: "/tmp/kommander-test.db"
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
  qos: 1
api:
  port: 9000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Instance.ID != "stage-left" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "stage-left")
	}
	if cfg.Device.URL != "ws://192.168.0.50:8089/" {
		t.Errorf("Device.URL = %q", cfg.Device.URL)
	}
	if !cfg.Device.DebugMessages {
		t.Error("Device.DebugMessages = false, want true")
	}
	// Unset keys keep their defaults.
	if !cfg.Device.Reconnect {
		t.Error("Device.Reconnect = false, want default true")
	}
	if !cfg.Device.ResetVariables {
		t.Error("Device.ResetVariables = false, want default true")
	}
	if cfg.Device.ToggleEncoding != "explicit" {
		t.Errorf("Device.ToggleEncoding = %q, want explicit", cfg.Device.ToggleEncoding)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
}

func TestLoad_InvalidDeviceURLIsNotALoadError(t *testing.T) {
	path := writeConfig(t, `
device:
  url: "http://not-a-websocket"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil (bad URLs surface as a status)", err)
	}
	if cfg.Device.URL != "http://not-a-websocket" {
		t.Errorf("Device.URL = %q", cfg.Device.URL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
instance:
  id: ""
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for empty instance.id, got nil")
	}
	if !strings.Contains(err.Error(), "instance.id") {
		t.Errorf("error = %v, want mention of instance.id", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "instance id with topic wildcard",
			mutate:  func(c *Config) { c.Instance.ID = "stage/+" },
			wantErr: "instance.id must not contain",
		},
		{
			name:    "unknown toggle encoding",
			mutate:  func(c *Config) { c.Device.ToggleEncoding = "sometimes" },
			wantErr: "device.toggle_encoding",
		},
		{
			name:    "database enabled without path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name: "database disabled without path",
			mutate: func(c *Config) {
				c.Database.Enabled = false
				c.Database.Path = ""
			},
		},
		{
			name:    "qos out of range",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name: "mqtt enabled without host",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.Broker.Host = ""
			},
			wantErr: "mqtt.broker.host",
		},
		{
			name:    "api port out of range",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name: "api disabled ignores port",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Bucket = "b" },
			wantErr: "influxdb.url",
		},
		{
			name:    "metrics path without slash",
			mutate:  func(c *Config) { c.Metrics.Path = "metrics" },
			wantErr: "metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Instance.ID = ""
	cfg.MQTT.QoS = 5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"instance.id", "mqtt.qos"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, missing %q", err, want)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 30*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
	if got := cfg.GetHandshakeTimeout(); got != 10*time.Second {
		t.Errorf("GetHandshakeTimeout() = %v, want 10s", got)
	}
	if got := cfg.GetHealthInterval(); got != 30*time.Second {
		t.Errorf("GetHealthInterval() = %v, want 30s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("KOMMANDER_DEVICE_URL", "wss://kommander.local/ws")
	t.Setenv("KOMMANDER_DEVICE_RECONNECT", "false")
	t.Setenv("KOMMANDER_DATABASE_PATH", "/var/lib/kommander.db")
	t.Setenv("KOMMANDER_MQTT_HOST", "mqtt.example.com")
	t.Setenv("KOMMANDER_MQTT_USERNAME", "bridge")
	t.Setenv("KOMMANDER_MQTT_PASSWORD", "secret")
	t.Setenv("KOMMANDER_API_PORT", "9100")
	t.Setenv("KOMMANDER_LOG_LEVEL", "debug")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Device.URL != "wss://kommander.local/ws" {
		t.Errorf("Device.URL = %q", cfg.Device.URL)
	}
	if cfg.Device.Reconnect {
		t.Error("Device.Reconnect = true, want false from env")
	}
	if cfg.Database.Path != "/var/lib/kommander.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Auth.Username != "bridge" || cfg.MQTT.Auth.Password != "secret" {
		t.Errorf("MQTT.Auth = %+v", cfg.MQTT.Auth)
	}
	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_IgnoresBadValues(t *testing.T) {
	t.Setenv("KOMMANDER_API_PORT", "not-a-port")
	t.Setenv("KOMMANDER_DEVICE_RECONNECT", "maybe")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want default 8090", cfg.API.Port)
	}
	if !cfg.Device.Reconnect {
		t.Error("Device.Reconnect = false, want default true")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Instance.ID == "" {
		t.Error("default Instance.ID is empty")
	}
	if cfg.Device.URL != "" {
		t.Errorf("default Device.URL = %q, want empty", cfg.Device.URL)
	}
	if cfg.Device.ToggleEncoding != "implicit" {
		t.Errorf("default ToggleEncoding = %q, want implicit", cfg.Device.ToggleEncoding)
	}
	if cfg.MQTT.Enabled {
		t.Error("default MQTT.Enabled = true, want false")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("default MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("default Logging.Format = %q, want json", cfg.Logging.Format)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %q, want /metrics", cfg.Metrics.Path)
	}
}
