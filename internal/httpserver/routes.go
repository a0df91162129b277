package httpserver

import (
	"github.com/go-chi/chi/v5"
)

// routes mounts every endpoint that requires authentication, per spec
// §6.1's table plus SPEC_FULL.md's supplemented operator endpoints.
// Per-route authorization (agent-scoped vs admin-only) is enforced inside
// each handler via auth.FromContext, since the two roles share most of
// this surface.
func (s *Server) routes(r chi.Router) {
	r.Get("/api/client/verify", s.handleVerify)

	r.Post("/api/metrics", s.handleIngestMetrics)
	r.Post("/api/logs", s.handleIngestLogs)

	r.Get("/api/commands/{agent_id}", s.handlePollCommands)
	r.Get("/api/commands/{agent_id}/stream", s.handleStreamCommands)
	r.Post("/api/command-results", s.handleSubmitCommandResult)
	r.Post("/api/commands", s.handleEnqueueCommand)
	r.Delete("/api/commands/{command_id}", s.handleCancelCommand)

	r.Get("/api/clients", s.handleListClients)
	r.Delete("/api/clients/{agent_id}", s.handleRevokeClient)

	r.Get("/api/series", s.handleSeriesCatalog)
	r.Get("/api/timeseries/{metric_name}", s.handleTimeseries)
	r.Get("/api/timeseries/{metric_name}/rate", s.handleRate)
	r.Get("/api/fraction", s.handleFraction)

	r.Get("/api/stats", s.handleStats)
}
