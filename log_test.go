package layerz

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/zoobzio/layerz/config"
)

func TestLogHandlerAddsXTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewLogHandler(slog.NewJSONHandler(&buf, nil)))

	md := NewMetadata(true)
	ctx, _ := ContinueContext(context.Background(), md.String())
	logger.InfoContext(ctx, "inside trace")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if rec["x_trace"] != md.String() {
		t.Errorf("x_trace = %v, want %s", rec["x_trace"], md.String())
	}

	buf.Reset()
	logger.InfoContext(context.Background(), "outside trace")
	if strings.Contains(buf.String(), "x_trace") {
		t.Error("x_trace must be omitted when not tracing")
	}
}

func TestLogHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewLogHandler(slog.NewJSONHandler(&buf, nil))).
		With("service", "api").
		WithGroup("req")

	ctx, _ := ContinueContext(context.Background(), NewMetadata(true).String())
	logger.InfoContext(ctx, "msg", "id", 1)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if rec["service"] != "api" {
		t.Errorf("service = %v", rec["service"])
	}
	group, ok := rec["req"].(map[string]any)
	if !ok || group["id"] != float64(1) {
		t.Errorf("req group = %v", rec["req"])
	}
	if _, ok := group["x_trace"]; !ok {
		t.Error("x_trace should be recorded within the open group")
	}
	if strings.Count(buf.String(), `"service"`) != 1 {
		t.Error("attributes must not be duplicated")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LogConfig{Level: "warn", Format: "text"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "component=layerz") {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
