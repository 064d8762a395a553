package app

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"seva/cmd/internal/auth/token"
)

// WithRequestLogging wraps an http.Handler and logs one line per request
// with the collapsed route label and, when a bearer token was verified,
// the acting principal's subject.
// IMPORTANT: the wrapped ResponseWriter must preserve optional interfaces
// (Hijacker, Flusher, Pusher, ReaderFrom), otherwise the /feed WebSocket
// upgrade fails.
func WithRequestLogging(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		iw := &instrumentedWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}

		next.ServeHTTP(iw, r)

		level, result := requestLogMeta(iw.status)
		attrs := []any{
			"method", r.Method,
			"route", metricsRoute(r.URL.Path),
			"path", r.URL.Path,
			"status", iw.status,
			"result", result,
			"bytes", iw.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		}
		if p, ok := token.PrincipalFromContext(r.Context()); ok {
			attrs = append(attrs, "subject", p.Subject)
		}

		log.Log(r.Context(), level, "http.request", attrs...)
	})
}

// requestLogMeta maps a response status to the log level and a stable
// result tag for the request line.
func requestLogMeta(status int) (slog.Level, string) {
	switch {
	case status >= 500:
		return slog.LevelError, "server_error"
	case status >= 400:
		return slog.LevelWarn, "client_error"
	case status >= 300:
		return slog.LevelInfo, "redirect"
	default:
		return slog.LevelInfo, "success"
	}
}

// instrumentedWriter records status and byte counts for the logging and
// metrics middleware while forwarding the optional writer interfaces.
type instrumentedWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *instrumentedWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *instrumentedWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *instrumentedWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying ResponseWriter does not support hijacking")
	}
	return hj.Hijack()
}

func (w *instrumentedWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *instrumentedWriter) Push(target string, opts *http.PushOptions) error {
	if p, ok := w.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func (w *instrumentedWriter) ReadFrom(r io.Reader) (int64, error) {
	if rf, ok := w.ResponseWriter.(io.ReaderFrom); ok {
		n, err := rf.ReadFrom(r)
		w.bytes += n
		return n, err
	}
	n, err := io.Copy(w.ResponseWriter, r)
	w.bytes += n
	return n, err
}

func (w *instrumentedWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
