package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alkorolyov/dcmon/internal/auth"
)

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok || !identity.IsAdmin {
		RespondError(w, http.StatusForbidden, "forbidden", "only admins may list clients")
		return
	}

	summaries, err := s.cfg.Agents.List(r.Context(), time.Now(), s.cfg.ClientStaleAfter)
	if err != nil {
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}

	out := make([]map[string]any, len(summaries))
	for i, a := range summaries {
		out[i] = map[string]any{
			"agent_id":      a.AgentID,
			"hostname":      a.Hostname,
			"status":        a.Status,
			"health":        a.Health,
			"registered_at": a.RegisteredAt.Unix(),
			"last_seen":     a.LastSeen.Unix(),
		}
	}
	Respond(w, http.StatusOK, map[string]any{"clients": out})
}

// handleRevokeClient revokes an agent's bearer token, per spec §4.1's
// "soft-retired when an admin revokes" and SPEC_FULL.md's endpoint
// addition for that operation. It does not purge the agent's history.
func (s *Server) handleRevokeClient(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok || !identity.IsAdmin {
		RespondError(w, http.StatusForbidden, "forbidden", "only admins may revoke clients")
		return
	}

	agentID := chi.URLParam(r, "agent_id")
	if err := s.cfg.Enroller.Revoke(r.Context(), agentID); err != nil {
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}

	Respond(w, http.StatusOK, nil)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok || !identity.IsAdmin {
		RespondError(w, http.StatusForbidden, "forbidden", "only admins may view stats")
		return
	}

	counts, err := s.cfg.Stats.GlobalCounts(r.Context())
	if err != nil {
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}

	top, err := s.cfg.Stats.TopAgentsByPoints(r.Context(), 5)
	if err != nil {
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}
	topOut := make([]map[string]any, len(top))
	for i, t := range top {
		topOut[i] = map[string]any{"agent_id": t.AgentID, "points": t.Points}
	}

	Respond(w, http.StatusOK, map[string]any{
		"agents":        counts.Agents,
		"series":        counts.Series,
		"metric_points": counts.MetricPoints,
		"log_entries":   counts.LogEntries,
		"commands":      counts.Commands,
		"top_agents":    topOut,
	})
}
