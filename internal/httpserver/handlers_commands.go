package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/alkorolyov/dcmon/internal/auth"
	"github.com/alkorolyov/dcmon/internal/command"
	"github.com/alkorolyov/dcmon/internal/store"
)

// handlePollCommands is the long-poll delivery path: GET
// /api/commands/{agent_id}, restricted to the agent itself or an admin.
func (s *Server) handlePollCommands(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agent_id")

	identity, ok := auth.FromContext(r.Context())
	if !ok || !identity.ScopedToAgent(agentID) {
		RespondError(w, http.StatusForbidden, "forbidden", "not authorized for this agent")
		return
	}

	claimed, err := s.cfg.Plane.Poll(r.Context(), agentID)
	if err != nil {
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}

	Respond(w, http.StatusOK, map[string]any{"commands": toCommandWire(claimed)})
}

// handleStreamCommands is the optional WebSocket path, per spec §4.6: the
// server pushes a wake-up the moment a command is enqueued, cutting
// latency versus waiting for the next poll interval. Semantics never
// differ from the poll path — the same Plane.Poll claims the commands.
func (s *Server) handleStreamCommands(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agent_id")

	identity, ok := auth.FromContext(r.Context())
	if !ok || !identity.ScopedToAgent(agentID) {
		RespondError(w, http.StatusForbidden, "forbidden", "not authorized for this agent")
		return
	}

	if s.cfg.Hub == nil {
		RespondError(w, http.StatusServiceUnavailable, "try_again_later", "streaming command delivery is disabled")
		return
	}

	err := s.cfg.Hub.Serve(w, r, agentID, func(ws *websocket.Conn) error {
		claimed, err := s.cfg.Plane.Poll(r.Context(), agentID)
		if err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		return ws.WriteJSON(map[string]any{"commands": toCommandWire(claimed)})
	})
	if err != nil {
		s.cfg.Logger.Warn("command stream closed", "agent_id", agentID, "error", err)
	}
}

type commandResultRequest struct {
	CommandID int64           `json:"command_id" validate:"required"`
	Status    string          `json:"status" validate:"required,oneof=completed failed"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func (s *Server) handleSubmitCommandResult(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok || identity.IsAdmin {
		RespondError(w, http.StatusForbidden, "forbidden", "command results must be submitted by the owning agent")
		return
	}

	var req commandResultRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	err := s.cfg.Plane.SubmitResult(r.Context(), identity.AgentID, command.ResultReport{
		CommandID: req.CommandID,
		Status:    req.Status,
		Result:    req.Result,
		Error:     req.Error,
	})
	if err != nil {
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}

	Respond(w, http.StatusOK, nil)
}

type enqueueCommandRequest struct {
	AgentID string          `json:"agent_id" validate:"required"`
	Type    string          `json:"type" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) handleEnqueueCommand(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok || !identity.IsAdmin {
		RespondError(w, http.StatusForbidden, "forbidden", "only admins may enqueue commands")
		return
	}

	var req enqueueCommandRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}
	if req.Payload == nil {
		req.Payload = json.RawMessage("{}")
	}

	id, err := s.cfg.Plane.Enqueue(r.Context(), req.AgentID, req.Type, req.Payload)
	if err != nil {
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}

	Respond(w, http.StatusOK, map[string]any{"command_id": id, "status": "pending"})
}

func (s *Server) handleCancelCommand(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok || !identity.IsAdmin {
		RespondError(w, http.StatusForbidden, "forbidden", "only admins may cancel commands")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "command_id"), 10, 64)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "bad_request", "command_id must be an integer")
		return
	}

	if err := s.cfg.Plane.Cancel(r.Context(), id); err != nil {
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}

	Respond(w, http.StatusOK, nil)
}

// toCommandWire renders commands.Command rows as the JSON shape the agent
// expects when polling for work.
func toCommandWire(cmds []store.Command) []map[string]any {
	out := make([]map[string]any, len(cmds))
	for i, c := range cmds {
		out[i] = map[string]any{
			"command_id": c.CommandID,
			"type":       c.Type,
			"payload":    json.RawMessage(c.Payload),
			"status":     c.Status,
			"created_at": c.CreatedAt.Unix(),
		}
	}
	return out
}
