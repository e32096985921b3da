package logging

import (
	"log/slog"
	"testing"

	"github.com/hearthwise/voicematch/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewReturnsUsableLogger(t *testing.T) {
	cfg := config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}

	logger := New(cfg, "test")
	if logger == nil || logger.Logger == nil {
		t.Fatal("New() returned nil logger")
	}

	// Must not panic.
	logger.Debug("debug message", "key", "value")
	logger.Info("info message")
}

func TestWithAddsAttributes(t *testing.T) {
	logger := Default()

	child := logger.With("component", "engine")
	if child == nil || child == logger {
		t.Error("With() should return a new logger")
	}
	child.Info("message from child")
}

func TestForStreamForcesStderr(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}

	logger := ForStream(cfg, "test")
	if logger == nil {
		t.Fatal("ForStream() returned nil")
	}
	logger.Info("stream-mode log line")
}
