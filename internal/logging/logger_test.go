package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"betternews/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LoggingConfig
		wantLevel zapcore.Level
	}{
		{name: "json info", cfg: config.LoggingConfig{Level: "INFO", Format: "json"}, wantLevel: zapcore.InfoLevel},
		{name: "text debug", cfg: config.LoggingConfig{Level: "debug", Format: "text"}, wantLevel: zapcore.DebugLevel},
		{name: "bad level falls back to info", cfg: config.LoggingConfig{Level: "loud", Format: "json"}, wantLevel: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if !logger.Core().Enabled(tt.wantLevel) {
				t.Errorf("Expected level %s to be enabled", tt.wantLevel)
			}
			if tt.wantLevel > zapcore.DebugLevel && logger.Core().Enabled(zapcore.DebugLevel) {
				t.Error("Debug should be disabled")
			}
		})
	}
}

func TestWithComponentNil(t *testing.T) {
	if WithComponent(nil, "test") == nil {
		t.Error("WithComponent(nil) should return a usable logger")
	}
}
