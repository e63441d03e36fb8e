package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/identity-service/pkg/logger"
)

// requestLogLine runs one request through RequestLogger, has the handler emit
// a single log record, and returns that record decoded.
func requestLogLine(t *testing.T, ctx context.Context) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	base := logger.NewWithWriter("identity-service", "info", &buf)

	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("request handled")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil).WithContext(ctx)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotZero(t, buf.Len(), "handler log should reach the base writer")

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestRequestLogger_HandlerGetsContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logger.NewWithWriter("identity-service", "info", &buf)

	var got *slog.Logger
	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logger.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	got.Info("from handler")
	assert.NotZero(t, buf.Len())
}

func TestRequestLogger_CarriesCorrelationID(t *testing.T) {
	ctx := logger.WithCorrelationID(context.Background(), "corr-login-7")
	out := requestLogLine(t, ctx)
	assert.Equal(t, "corr-login-7", out["correlation_id"])
}

func TestRequestLogger_CarriesAuthenticatedUser(t *testing.T) {
	// Auth stores the authenticated subject under userIDKey before this
	// middleware runs.
	ctx := context.WithValue(context.Background(), userIDKey, "550e8400-e29b-41d4-a716-446655440001")
	out := requestLogLine(t, ctx)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440001", out["user_id"])
}

func TestRequestLogger_AnonymousRequestOmitsUserID(t *testing.T) {
	out := requestLogLine(t, context.Background())
	_, present := out["user_id"]
	assert.False(t, present, "unauthenticated requests have no user to log")
}

func TestRequestLogger_CarriesTraceAndSpanIDs(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	out := requestLogLine(t, ctx)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", out["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", out["span_id"])
}
