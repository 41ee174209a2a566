package logger

import (
	"strings"
	"testing"
)

func TestWriterLoggerFiltersByLevel(t *testing.T) {
	var sb strings.Builder
	l := NewWriterLogger(&sb, LevelInfo)

	Debug(l, "hidden", nil)
	Info(l, "shown", Fields{"b": 2, "a": 1})

	out := sb.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked through: %q", out)
	}
	if !strings.Contains(out, "INFO") || !strings.Contains(out, "shown") {
		t.Fatalf("info line missing: %q", out)
	}
	// Fields render sorted by key.
	if !strings.Contains(out, "a=1 b=2") {
		t.Fatalf("fields not sorted: %q", out)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	Error(nil, "no panic", Fields{"k": "v"})
	Nop{}.Log(LevelError, "dropped", nil)
}
