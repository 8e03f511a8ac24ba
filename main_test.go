package main

import (
	"log/slog"
	"testing"

	"github.com/slighter12/quip-mcp-go/config"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level string
		debug bool
		want  slog.Level
	}{
		{"configured level", "warn", false, slog.LevelWarn},
		{"debug flag wins", "info", true, slog.LevelDebug},
		{"debug flag over reloaded error level", "error", true, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			cfg.Logging.Level = tt.level
			cfg.Server.Debug = tt.debug

			if got := logLevel(cfg); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
