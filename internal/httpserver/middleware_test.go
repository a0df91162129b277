package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alkorolyov/dcmon/internal/telemetry"
)

func TestRequestIDGeneratesWhenAbsent(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen == "" {
		t.Fatal("expected a generated request ID in context")
	}
	if w.Header().Get("X-Request-ID") != seen {
		t.Fatalf("response header = %q, want %q", w.Header().Get("X-Request-ID"), seen)
	}
}

func TestRequestIDEchoesIncoming(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen != "fixed-id-123" {
		t.Fatalf("request ID = %q, want fixed-id-123", seen)
	}
}

func TestLoggerTagsRequestWithAgentIDResolvedDownstream(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var captured *telemetry.RequestTags
	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Simulates internal/auth.Middleware resolving an agent identity
		// further down the chain, after Logger has already installed the
		// tags pointer.
		captured = telemetry.RequestTagsFromContext(r.Context())
		if captured != nil {
			captured.AgentID = "host01"
		}
	}))

	req := httptest.NewRequest("GET", "/api/commands/host01", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if captured == nil {
		t.Fatal("expected Logger to install request tags in the context")
	}
	if captured.AgentID != "host01" {
		t.Fatalf("tags.AgentID = %q, want host01", captured.AgentID)
	}
}

func TestStatusWriterCapturesCode(t *testing.T) {
	w := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	sw.WriteHeader(http.StatusTeapot)

	if sw.status != http.StatusTeapot {
		t.Fatalf("sw.status = %d, want %d", sw.status, http.StatusTeapot)
	}
	if w.Code != http.StatusTeapot {
		t.Fatalf("underlying recorder code = %d, want %d", w.Code, http.StatusTeapot)
	}
}
