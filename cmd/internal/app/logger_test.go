package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: " Error ", want: slog.LevelError},
		{in: "unknown", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		got := parseLogLevel(tc.in)
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestNewLogHandler_FormatSelection(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newLogHandler(&buf, "info", "json", false))
	log.Info("server.start", "addr", ":8080")

	out := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(out, "{") {
		t.Fatalf("json format must emit a JSON object, got: %s", out)
	}
	if !strings.Contains(out, `"msg":"server.start"`) {
		t.Fatalf("missing message in json output: %s", out)
	}

	buf.Reset()
	log = slog.New(newLogHandler(&buf, "info", "pretty", false))
	log.Info("server.start", "addr", ":8080")

	out = strings.TrimSpace(buf.String())
	if strings.HasPrefix(out, "{") {
		t.Fatalf("pretty format must not emit raw JSON, got: %s", out)
	}
	if !strings.Contains(out, "server.start") {
		t.Fatalf("missing message in pretty output: %s", out)
	}
}

func TestNewLogHandler_LevelFiltering(t *testing.T) {
	t.Parallel()

	h := newLogHandler(&bytes.Buffer{}, "warn", "json", false)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info must be filtered at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("error must pass at warn level")
	}
}
