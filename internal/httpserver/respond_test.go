package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/alkorolyov/dcmon/internal/apierr"
)

func TestRespondWritesJSONAndStatus(t *testing.T) {
	w := httptest.NewRecorder()
	Respond(w, 201, map[string]string{"hello": "world"})

	if w.Code != 201 {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["hello"] != "world" {
		t.Fatalf("body = %v", body)
	}
}

func TestRespondAPIErrorRendersKnownKind(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	RespondAPIError(w, logger, apierr.New(apierr.NotFound, "agent not found"))

	if w.Code != 404 {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error != string(apierr.NotFound) {
		t.Fatalf("error = %q, want %q", body.Error, apierr.NotFound)
	}
}

func TestRespondAPIErrorHidesUnknownCause(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	RespondAPIError(w, logger, errors.New("connection reset by peer"))

	if w.Code != 500 {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error != "internal" {
		t.Fatalf("error = %q, want internal", body.Error)
	}
	if body.Message == "connection reset by peer" {
		t.Fatalf("underlying cause leaked to client: %q", body.Message)
	}
}
