package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alkorolyov/dcmon/internal/audit"
	"github.com/alkorolyov/dcmon/internal/store"
	"github.com/alkorolyov/dcmon/internal/telemetry"
)

// Middleware authenticates every request via either an agent bearer token
// (Authorization: Bearer <token>) or HTTP Basic admin credentials
// (username "admin", password the admin token), storing the resolved
// Identity in the request context. Unauthenticated requests are rejected
// with 401 before reaching any handler.
//
// Authentication precedence:
//  1. Authorization: Bearer <token>  → agent identity via bearer-token hash lookup
//  2. HTTP Basic admin/<admin_token> → admin identity
func Middleware(agents *store.AgentStore, adminToken func() string, testMode bool, auditLog *audit.Writer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, authErr := authenticate(r, agents, adminToken, testMode)
			if authErr != nil {
				prefix := tokenPrefix(r)
				auditLog.Record(r.Context(), audit.Event{
					Kind:        "auth_failure",
					TokenPrefix: prefix,
					RemoteAddr:  r.RemoteAddr,
					Path:        r.URL.Path,
				})
				logger.Warn("authentication failed", "path", r.URL.Path, "token_prefix", prefix)
				reason := "invalid_credentials"
				if !errors.Is(authErr, errNoCredentials) {
					reason = "lookup_error"
				}
				telemetry.AuthFailuresTotal.WithLabelValues(reason).Inc()
				respondUnauthorized(w)
				return
			}

			if tags := telemetry.RequestTagsFromContext(r.Context()); tags != nil {
				tags.AgentID = identity.AgentID
			}

			ctx := NewContext(r.Context(), *identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

var errNoCredentials = errors.New("no credentials presented")

func authenticate(r *http.Request, agents *store.AgentStore, adminToken func() string, testMode bool) (*Identity, error) {
	if rawToken, ok := bearerToken(r); ok {
		agent, err := agents.GetByTokenHash(r.Context(), HashToken(rawToken))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, errNoCredentials
			}
			return nil, err
		}
		return &Identity{AgentID: agent.AgentID}, nil
	}

	if user, pass, ok := r.BasicAuth(); ok && user == "admin" {
		valid := ConstantTimeEqual(pass, adminToken())
		if testMode && ConstantTimeEqual(pass, devModeAdminToken) {
			valid = true
		}
		if valid {
			return &Identity{IsAdmin: true}, nil
		}
	}

	return nil, errNoCredentials
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// tokenPrefix returns the first 8 characters of a presented bearer token
// for audit logging, per spec §4.1 ("a per-token-prefix audit record").
// Never logs the full token.
func tokenPrefix(r *http.Request) string {
	token, ok := bearerToken(r)
	if !ok {
		return ""
	}
	if len(token) > 8 {
		return token[:8]
	}
	return token
}

func respondUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="nightwatch-admin"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthenticated","message":"valid bearer token or admin credentials required"}`))
}
