package cli

import (
	"log/slog"
	"testing"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level string
		debug bool
		want  slog.Level
	}{
		{"info", false, slog.LevelInfo},
		{"warn", false, slog.LevelWarn},
		{"error", false, slog.LevelError},
		{"debug", false, slog.LevelDebug},
		{"", false, slog.LevelInfo},
		{"error", true, slog.LevelDebug},
	}

	for _, tt := range tests {
		isDebug = tt.debug
		if got := logLevel(tt.level); got != tt.want {
			t.Errorf("logLevel(%q, debug=%v) = %v, want %v", tt.level, tt.debug, got, tt.want)
		}
	}
	isDebug = false
}
