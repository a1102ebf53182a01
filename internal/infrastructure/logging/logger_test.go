package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/kommander-bridge/internal/infrastructure/config"
)

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"json", `"msg":"connected"`},
		{"JSON", `"msg":"connected"`},
		{"text", "msg=connected"},
		{"", `"msg":"connected"`},
	}

	for _, tt := range tests {
		t.Run("format "+tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newWithWriter(&buf, config.LoggingConfig{Level: "info", Format: tt.format}, "1.0.0")
			logger.Info("connected")
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output = %q, want it to contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestNew_Output(t *testing.T) {
	for _, output := range []string{"stdout", "stderr", "STDERR", ""} {
		if New(config.LoggingConfig{Output: output}, "1.0.0") == nil {
			t.Errorf("New(output=%q) = nil", output)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{
			name:     "debug level",
			input:    "debug",
			expected: slog.LevelDebug,
		},
		{
			name:     "info level",
			input:    "info",
			expected: slog.LevelInfo,
		},
		{
			name:     "warn level",
			input:    "warn",
			expected: slog.LevelWarn,
		},
		{
			name:     "warning level",
			input:    "warning",
			expected: slog.LevelWarn,
		},
		{
			name:     "error level",
			input:    "error",
			expected: slog.LevelError,
		},
		{
			name:     "unknown defaults to info",
			input:    "unknown",
			expected: slog.LevelInfo,
		},
		{
			name:     "empty defaults to info",
			input:    "",
			expected: slog.LevelInfo,
		},
		{
			name:     "case insensitive",
			input:    "DEBUG",
			expected: slog.LevelDebug,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "json"}, "1.0.0")
	child := logger.With("instance_id", "stage-left")

	if child == logger {
		t.Fatal("With() returned the parent")
	}
	child.Info("ready")
	if !strings.Contains(buf.String(), `"instance_id":"stage-left"`) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestDefault(t *testing.T) {
	logger := Default()

	if logger == nil {
		t.Fatal("expected non-nil default logger")
	}
}

func TestLogger_OutputContainsDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "json"}, "test")

	logger.Info("test message", "key", "value")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	if logEntry["service"] != "kommander" {
		t.Errorf("service = %v, want kommander", logEntry["service"])
	}
	if logEntry["version"] != "test" {
		t.Errorf("version = %v, want test", logEntry["version"])
	}
	if logEntry["msg"] != "test message" {
		t.Errorf("expected msg='test message', got %v", logEntry["msg"])
	}
	if logEntry["key"] != "value" {
		t.Errorf("expected key='value', got %v", logEntry["key"])
	}
}

func TestLogger_SetLevelIsSharedWithChildren(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "text"}, "test")
	child := logger.Component("session")

	child.Debug("hidden frame")
	if buf.Len() != 0 {
		t.Fatalf("debug output at info level: %q", buf.String())
	}

	logger.SetLevel("debug")
	if logger.Level() != slog.LevelDebug {
		t.Fatalf("Level() = %v, want debug", logger.Level())
	}

	child.Debug("visible frame")
	out := buf.String()
	if !strings.Contains(out, "visible frame") {
		t.Errorf("child did not pick up new level, output = %q", out)
	}
	if !strings.Contains(out, "component=session") {
		t.Errorf("output missing component attr: %q", out)
	}
}
