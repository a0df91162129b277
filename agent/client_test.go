package agent

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alkorolyov/dcmon/internal/auth"
)

func TestBuildRegistrationSignatureVerifiesAgainstCanonicalPayload(t *testing.T) {
	dir := t.TempDir()
	kp, err := LoadOrCreateKeyPair(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateKeyPair() error = %v", err)
	}

	now := time.Unix(1700000000, 0)
	req, err := BuildRegistration("agent-1", "host-1", "admin-token", kp, now)
	if err != nil {
		t.Fatalf("BuildRegistration() error = %v", err)
	}

	payload := auth.RegistrationPayload{
		AgentID:   req.AgentID,
		Hostname:  req.Hostname,
		PublicKey: req.PublicKey,
		Nonce:     req.Nonce,
		Timestamp: req.Timestamp,
	}
	digest := sha256.Sum256(payload.Canonical())
	if err := rsa.VerifyPKCS1v15(&kp.Private.PublicKey, crypto.SHA256, digest[:], req.Signature); err != nil {
		t.Fatalf("server-side verification would fail: %v", err)
	}
	if req.AdminToken != "admin-token" {
		t.Fatalf("AdminToken = %q, want admin-token", req.AdminToken)
	}
}

func TestRegisterReturnsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/clients/register" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		if body["agent_id"] != "agent-1" {
			t.Fatalf("agent_id = %v, want agent-1", body["agent_id"])
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"agent_id":     "agent-1",
			"bearer_token": "tok-abc",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, true)
	token, err := c.Register(context.Background(), RegisterRequest{AgentID: "agent-1", Hostname: "host-1"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if token != "tok-abc" {
		t.Fatalf("token = %q, want tok-abc", token)
	}
}

func TestDoReturnsRetryAfterOn503(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, true)
	c.SetBearerToken("tok")
	_, err := c.PushMetrics(context.Background(), MetricsBatchWire{AgentID: "agent-1"})

	var retry *RetryAfter
	if err == nil {
		t.Fatal("expected a RetryAfter error")
	}
	if e, ok := err.(*RetryAfter); !ok {
		t.Fatalf("error type = %T, want *RetryAfter", err)
	} else {
		retry = e
	}
	if retry.Seconds != 7 {
		t.Fatalf("RetryAfter.Seconds = %d, want 7", retry.Seconds)
	}
}

func TestDoReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "unauthenticated", "message": "bad token"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, true)
	c.SetBearerToken("bad")
	if err := c.Verify(context.Background()); err == nil {
		t.Fatal("expected an error for 401 response")
	}
}
