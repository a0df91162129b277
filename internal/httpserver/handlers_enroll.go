package httpserver

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/alkorolyov/dcmon/internal/auth"
	"github.com/alkorolyov/dcmon/internal/store"
)

// registerRequest is the wire shape of POST /api/clients/register. Fields
// that are binary on the wire (public key, signature) travel as
// base64-encoded strings, matching every other JSON body in this API.
type registerRequest struct {
	AgentID    string `json:"agent_id" validate:"required"`
	Hostname   string `json:"hostname" validate:"required"`
	PublicKey  string `json:"public_key" validate:"required"` // base64 DER, SubjectPublicKeyInfo
	Nonce      string `json:"nonce" validate:"required"`
	Timestamp  int64  `json:"timestamp" validate:"required"`
	Signature  string `json:"signature" validate:"required"` // base64
	AdminToken string `json:"admin_token" validate:"required"`
}

type registerResponse struct {
	AgentID     string `json:"agent_id"`
	BearerToken string `json:"bearer_token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	pubKey, err := base64.StdEncoding.DecodeString(req.PublicKey)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "bad_request", "public_key is not valid base64")
		return
	}
	sig, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "bad_request", "signature is not valid base64")
		return
	}

	token, err := s.cfg.Enroller.Register(r.Context(), auth.RegisterRequest{
		Payload: auth.RegistrationPayload{
			AgentID:   req.AgentID,
			Hostname:  req.Hostname,
			PublicKey: pubKey,
			Nonce:     req.Nonce,
			Timestamp: req.Timestamp,
		},
		Signature:  sig,
		AdminToken: req.AdminToken,
	})
	if err != nil {
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}

	Respond(w, http.StatusOK, registerResponse{AgentID: req.AgentID, BearerToken: token})
}

// handleVerify returns the calling agent's own identity, confirming the
// bearer token is still valid. Admins are rejected: verify is an
// agent-only self-check, per spec §6.1.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok || identity.IsAdmin {
		RespondError(w, http.StatusForbidden, "forbidden", "verify requires an agent bearer token")
		return
	}

	agent, err := s.cfg.Agents.GetByID(r.Context(), identity.AgentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondError(w, http.StatusNotFound, "not_found", "agent not found")
			return
		}
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}

	Respond(w, http.StatusOK, map[string]any{
		"agent_id":  agent.AgentID,
		"hostname":  agent.Hostname,
		"last_seen": agent.LastSeen.Unix(),
	})
}
