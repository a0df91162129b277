package auth

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/alkorolyov/dcmon/internal/apierr"
	"github.com/alkorolyov/dcmon/internal/store"
)

// RegistrationPayload is the canonical form of the fields an agent signs
// when enrolling. Field order here is what gets hashed, so it must never
// change without a wire-format bump.
type RegistrationPayload struct {
	AgentID   string
	Hostname  string
	PublicKey []byte // DER, SubjectPublicKeyInfo
	Nonce     string
	Timestamp int64
}

// canonical serializes the payload deterministically for signing and
// verification. This is a fixed field order, not labels.Set canonicalization.
func (p RegistrationPayload) canonical() []byte {
	return p.Canonical()
}

// Canonical is the exported form of the same serialization, used by the
// agent side to produce the exact bytes this package verifies against.
func (p RegistrationPayload) Canonical() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s\n%s\n", p.AgentID, p.Hostname)
	b.Write(p.PublicKey)
	fmt.Fprintf(&b, "\n%s\n%d", p.Nonce, p.Timestamp)
	return b.Bytes()
}

// RegisterRequest is the full registration request body an agent POSTs.
type RegisterRequest struct {
	Payload   RegistrationPayload
	Signature []byte
	AdminToken string
}

// Enroller implements the one-time admin-token-gated registration protocol
// described in spec §4.1: verify the admin token, verify the agent's
// signature over its registration payload, then mint and persist a bearer
// token.
type Enroller struct {
	agents *store.AgentStore

	adminToken func() string
	testMode   bool
	now        func() time.Time
}

// devModeAdminToken is accepted in addition to the on-disk admin token
// when the server runs in test_mode, per spec §4.1 and §6.4.
const devModeAdminToken = "dev-admin-token"

// NewEnroller creates an Enroller. adminToken is called fresh on every
// registration attempt so that rotating the on-disk token takes effect
// without a restart of this component (the server as a whole still only
// rereads the file at startup, per the Admin-token-rotation decision).
func NewEnroller(agents *store.AgentStore, adminToken func() string, testMode bool) *Enroller {
	return &Enroller{agents: agents, adminToken: adminToken, testMode: testMode, now: time.Now}
}

// Register runs the full enrollment protocol and returns the raw bearer
// token to hand back to the agent. The raw token is never stored; only its
// hash is persisted.
func (e *Enroller) Register(ctx context.Context, req RegisterRequest) (bearerToken string, err error) {
	if !e.validAdminToken(req.AdminToken) {
		return "", apierr.New(apierr.Unauthenticated, "invalid admin token")
	}

	pub, err := x509.ParsePKIXPublicKey(req.Payload.PublicKey)
	if err != nil {
		return "", apierr.Wrap(apierr.BadRequest, "malformed public key", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return "", apierr.New(apierr.BadRequest, "public key is not RSA")
	}

	digest := sha256.Sum256(req.Payload.canonical())
	if err := rsa.VerifyPKCS1v15(rsaPub, crypto.SHA256, digest[:], req.Signature); err != nil {
		return "", apierr.Wrap(apierr.BadRequest, "signature verification failed", err)
	}

	existing, err := e.agents.GetByID(ctx, req.Payload.AgentID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// first registration, proceed below
	case err != nil:
		return "", apierr.Wrap(apierr.Internal, "looking up agent", err)
	default:
		if !bytes.Equal(existing.PublicKey, req.Payload.PublicKey) {
			return "", apierr.New(apierr.AlreadyExists, "agent_id already registered with a different public key")
		}
		// Same agent_id, same key: registration is idempotent, but a new
		// bearer token is NOT reissued on replay — the agent already has
		// a valid one. Returning AlreadyExists tells it to keep using
		// its persisted token rather than silently minting a second one.
		return "", apierr.New(apierr.AlreadyExists, "agent already registered")
	}

	raw, err := GenerateBearerToken()
	if err != nil {
		return "", apierr.Wrap(apierr.Internal, "generating bearer token", err)
	}

	now := e.now()
	err = e.agents.Create(ctx, store.Agent{
		AgentID:         req.Payload.AgentID,
		Hostname:        req.Payload.Hostname,
		PublicKey:       req.Payload.PublicKey,
		BearerTokenHash: HashToken(raw),
		RegisteredAt:    now,
	})
	if err != nil {
		return "", apierr.Wrap(apierr.Internal, "persisting agent", err)
	}

	return raw, nil
}

func (e *Enroller) validAdminToken(presented string) bool {
	if e.testMode && ConstantTimeEqual(presented, devModeAdminToken) {
		return true
	}
	return ConstantTimeEqual(presented, e.adminToken())
}

// Revoke invalidates an agent's bearer token and marks it retired. The
// agent row itself is kept (not purged) so its historical series/points/
// logs remain queryable; Purge is the separate, explicit operation for
// clearing the way for re-registration with a new key.
func (e *Enroller) Revoke(ctx context.Context, agentID string) error {
	if err := e.agents.Revoke(ctx, agentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierr.New(apierr.NotFound, "agent not found")
		}
		return apierr.Wrap(apierr.Internal, "revoking agent", err)
	}
	return nil
}
