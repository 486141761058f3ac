package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"error":   slog.LevelError,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"":        slog.LevelInfo,
		" info ":  slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"verbose": slog.LevelDebug,
	}
	for in, want := range cases {
		if got := levelFromString(in); got != want {
			t.Fatalf("levelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWriterFormats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewWriter(&buf, "info", "json").Info("pipeline run done", "events", 3)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "pipeline run done" || line["events"] != float64(3) {
		t.Fatalf("unexpected record: %v", line)
	}

	buf.Reset()
	logger := NewWriter(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown", "source", "gov")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "source=gov") {
		t.Fatalf("unexpected text output %q", out)
	}
}
