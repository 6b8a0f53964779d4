package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestWriteProducesOneJSONLinePerCall(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Warn("rules.reload_failed", map[string]any{"path": "/etc/rules.yaml", "level": "spoofed"})
	Info("inquiry.created", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["level"] != "warn" || entry["msg"] != "rules.reload_failed" || entry["path"] != "/etc/rules.yaml" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestWriteReportsUnmarshalableFields(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Error("bad", map[string]any{"ch": make(chan int)})
	if !strings.Contains(buf.String(), "logger marshal failed") {
		t.Fatalf("expected fallback line, got %q", buf.String())
	}
}
