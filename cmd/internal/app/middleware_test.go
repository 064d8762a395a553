package app

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"seva/cmd/internal/auth/token"
)

func TestRequestLogMeta(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status     int
		wantLevel  slog.Level
		wantResult string
	}{
		{status: 200, wantLevel: slog.LevelInfo, wantResult: "success"},
		{status: 201, wantLevel: slog.LevelInfo, wantResult: "success"},
		{status: 302, wantLevel: slog.LevelInfo, wantResult: "redirect"},
		{status: 401, wantLevel: slog.LevelWarn, wantResult: "client_error"},
		{status: 404, wantLevel: slog.LevelWarn, wantResult: "client_error"},
		{status: 503, wantLevel: slog.LevelError, wantResult: "server_error"},
	}

	for _, tc := range cases {
		level, result := requestLogMeta(tc.status)
		if level != tc.wantLevel || result != tc.wantResult {
			t.Fatalf("status=%d level=%v result=%q; want level=%v result=%q",
				tc.status, level, result, tc.wantLevel, tc.wantResult)
		}
	}
}

func TestWithRequestLogging_RouteAndSubject(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), log)

	now := time.Now()
	ctx := token.ContextWithPrincipal(context.Background(), token.Principal{
		Subject:   7,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})

	req := httptest.NewRequest(http.MethodDelete, "/grievances/42", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	out := buf.String()
	for _, want := range []string{
		`"msg":"http.request"`,
		`"route":"/grievances/{id}"`,
		`"path":"/grievances/42"`,
		`"status":204`,
		`"result":"success"`,
		`"subject":7`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log line missing %s:\n%s", want, out)
		}
	}
}

func TestWithRequestLogging_AnonymousHasNoSubject(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}), log)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	out := buf.String()
	if strings.Contains(out, `"subject"`) {
		t.Fatalf("anonymous request must not carry a subject:\n%s", out)
	}
	if !strings.Contains(out, `"result":"client_error"`) {
		t.Fatalf("expected client_error result:\n%s", out)
	}
	if !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("4xx must log at WARN:\n%s", out)
	}
}

func TestInstrumentedWriter_CountsBytesAndStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	iw := &instrumentedWriter{ResponseWriter: rr, status: http.StatusOK}

	iw.WriteHeader(http.StatusCreated)
	if _, err := iw.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if iw.status != http.StatusCreated {
		t.Fatalf("status = %d, want 201", iw.status)
	}
	if iw.bytes != 5 {
		t.Fatalf("bytes = %d, want 5", iw.bytes)
	}

	// The recorder implements Flusher; the wrapper must pass it through
	// rather than swallow it, or streaming responses stall.
	var w http.ResponseWriter = iw
	if _, ok := w.(http.Flusher); !ok {
		t.Fatalf("instrumentedWriter must implement http.Flusher")
	}
	if got := iw.Unwrap(); got != http.ResponseWriter(rr) {
		t.Fatalf("Unwrap returned a different writer")
	}
}
