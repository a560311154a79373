package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level  string
		format string
		want   zapcore.Level
	}{
		{"info", "console", zapcore.InfoLevel},
		{"debug", "json", zapcore.DebugLevel},
		{" WARN ", "console", zapcore.WarnLevel},
	}

	for _, tt := range tests {
		l, err := New(tt.level, tt.format)
		if err != nil {
			t.Fatalf("New(%q, %q): %v", tt.level, tt.format, err)
		}
		if !l.Core().Enabled(tt.want) {
			t.Errorf("level %s should be enabled for %q", tt.want, tt.level)
		}
		if tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1) {
			t.Errorf("level %s should be disabled for %q", tt.want-1, tt.level)
		}
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("loud", "console"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Error("expected no-op logger")
	}
}
