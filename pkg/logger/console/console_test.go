package console

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Output: &buf})

	l.Debug("hidden")
	l.Warn("[Endpoint] call failed", "endpoint", "mgeo")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written without Debug flag: %q", out)
	}
	if !strings.Contains(out, "call failed") || !strings.Contains(out, "endpoint=mgeo") {
		t.Fatalf("warn line missing message or keyvals: %q", out)
	}
}

func TestConsoleLoggerDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Debug: true, Output: &buf})

	l.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("debug line missing: %q", buf.String())
	}
}
