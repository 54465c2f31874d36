package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
	}{
		{"debug", true, true},
		{"INFO", false, true},
		{"warn", false, false},
		{"bogus", false, true},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := New(&buf, tt.level, "text")
		logger.Debug("debug-line")
		logger.Info("info-line")

		out := buf.String()
		if got := strings.Contains(out, "debug-line"); got != tt.debugSeen {
			t.Errorf("level %q: debug seen = %v, want %v", tt.level, got, tt.debugSeen)
		}
		if got := strings.Contains(out, "info-line"); got != tt.infoSeen {
			t.Errorf("level %q: info seen = %v, want %v", tt.level, got, tt.infoSeen)
		}
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "json").Info("hello", "component", "test")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "hello" || rec["component"] != "test" {
		t.Errorf("record = %v", rec)
	}
}
