package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"crisp-academy/backend/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		wantErr bool
		enabled zapcore.Level
	}{
		{"JSONInfo", config.LogConfig{Level: "info", Format: "json"}, false, zapcore.InfoLevel},
		{"ConsoleDebug", config.LogConfig{Level: "debug", Format: "console"}, false, zapcore.DebugLevel},
		{"BadLevel", config.LogConfig{Level: "loud", Format: "json"}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLogger(&tt.cfg, "test")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !l.Core().Enabled(tt.enabled) {
				t.Errorf("level %s should be enabled", tt.enabled)
			}
			if l.Core().Enabled(tt.enabled - 1) {
				t.Errorf("level %s should be disabled", tt.enabled-1)
			}
		})
	}
}
