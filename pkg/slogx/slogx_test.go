package slogx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/tickerwatch/pkg/slogx"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, slogx.ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, slogx.ParseLevel("warning"))
	require.Equal(t, slog.LevelError, slogx.ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, slogx.ParseLevel("bogus"))
}

func TestNewWritesJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{Service: "tickerctl", Version: "test", Env: "prod", Format: "json", Output: &buf})
	logger.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "hello", entry["msg"])
	require.Equal(t, "tickerctl", entry["service"])
}

func TestNewRedactsSecrets(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{Service: "tickerctl", Format: "json", Output: &buf})
	logger.Warn("login", "password", "hunter2", "Token", "tok-abc", "email", "ada@example.com")

	out := buf.String()
	require.NotContains(t, out, "hunter2")
	require.NotContains(t, out, "tok-abc")
	require.Contains(t, out, slogx.Redacted)
	require.Contains(t, out, "ada@example.com")
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, slog.Default(), slogx.FromContext(ctx))

	logger := slogx.Discard()
	ctx = slogx.WithContext(ctx, logger)
	require.Same(t, logger, slogx.FromContext(ctx))
}

func TestHTTPMiddlewareAttachesLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var sawLogger bool
	h := slogx.HTTPMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = slogx.FromContext(r.Context()) != slog.Default()
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?token=secret", nil))

	require.True(t, sawLogger)
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Contains(t, buf.String(), `"status":418`)
	require.Contains(t, buf.String(), `"query_keys":["token"]`)
	require.NotContains(t, buf.String(), "secret")
}

func TestTracedAddsSpanIDs(t *testing.T) {
	base := slogx.Discard()
	require.Same(t, base, slogx.Traced(context.Background(), base))

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	var buf bytes.Buffer
	logger := slogx.Traced(ctx, slog.New(slog.NewJSONHandler(&buf, nil)))
	logger.Info("hello")

	require.Contains(t, buf.String(), span.SpanContext().TraceID().String())
	require.Contains(t, buf.String(), span.SpanContext().SpanID().String())
}
