// Package command implements the bidirectional command plane of spec
// §4.6: enqueue, long-poll delivery, streaming delivery, and result
// submission, all driven by the same commands-table state machine.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alkorolyov/dcmon/internal/apierr"
	"github.com/alkorolyov/dcmon/internal/store"
	"github.com/alkorolyov/dcmon/internal/telemetry"
)

// recognizedTypes lists the command types spec §4.6 defines a payload
// schema for. Anything else is accepted at enqueue time but fails at
// execution with UnknownCommand — that failure is reported by the agent
// in its result, not rejected here.
var recognizedTypes = map[string]bool{
	"fan_control": true,
	"ipmi_raw":    true,
	"system_info": true,
	"reboot":      true,
}

// Plane coordinates command enqueue, delivery, and result capture.
type Plane struct {
	pool     *pgxpool.Pool
	commands *store.CommandStore
	hub      *Hub
	now      func() time.Time
}

// NewPlane creates a command Plane. hub may be nil if the streaming
// delivery path is disabled.
func NewPlane(pool *pgxpool.Pool, commands *store.CommandStore, hub *Hub) *Plane {
	return &Plane{pool: pool, commands: commands, hub: hub, now: time.Now}
}

// Enqueue validates that the command payload is well-formed JSON,
// queues it, and (when the streaming path is connected for this agent)
// pushes it immediately to reduce latency, per spec §4.6.
func (p *Plane) Enqueue(ctx context.Context, agentID, cmdType string, payload json.RawMessage) (int64, error) {
	if !json.Valid(payload) {
		return 0, apierr.New(apierr.BadRequest, "command payload is not valid JSON")
	}

	id, err := p.commands.Enqueue(ctx, agentID, cmdType, payload)
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "enqueuing command", err)
	}
	telemetry.CommandsTotal.WithLabelValues("pending").Inc()

	if p.hub != nil {
		p.hub.Notify(agentID)
	}
	return id, nil
}

// Poll claims every pending command for agentID, marking it delivered,
// within a single transaction so concurrent pollers for the same agent
// never double-claim a command.
func (p *Plane) Poll(ctx context.Context, agentID string) ([]store.Command, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "beginning poll transaction", err)
	}
	defer tx.Rollback(ctx)

	claimed, err := p.commands.Poll(ctx, tx, agentID, p.now())
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "polling commands", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apierr.Wrap(apierr.Internal, "committing poll transaction", err)
	}

	for range claimed {
		telemetry.CommandsTotal.WithLabelValues("delivered").Inc()
	}
	return claimed, nil
}

// ResultReport is the body of POST /api/command-results.
type ResultReport struct {
	CommandID int64
	Status    string // completed, failed
	Result    json.RawMessage
	Error     string
}

// SubmitResult records an agent's outcome for a command it executed.
func (p *Plane) SubmitResult(ctx context.Context, agentID string, report ResultReport) error {
	cmd, err := p.commands.GetByID(ctx, report.CommandID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierr.New(apierr.NotFound, "command not found")
		}
		return apierr.Wrap(apierr.Internal, "looking up command", err)
	}
	if cmd.AgentID != agentID {
		return apierr.New(apierr.Forbidden, "command does not belong to this agent")
	}

	errMsg := report.Error
	if report.Status == "failed" && errMsg == "" {
		errMsg = "execution failed"
	}
	if err := p.commands.Complete(ctx, report.CommandID, report.Result, errMsg, p.now()); err != nil {
		return apierr.Wrap(apierr.Internal, "recording command result", err)
	}

	status := "completed"
	if errMsg != "" {
		status = "failed"
	}
	telemetry.CommandsTotal.WithLabelValues(status).Inc()
	return nil
}

// Cancel marks a still-pending/delivered command expired, per
// SPEC_FULL.md §5's DELETE /api/commands/{command_id} addition.
func (p *Plane) Cancel(ctx context.Context, commandID int64) error {
	if err := p.commands.Cancel(ctx, commandID, p.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierr.New(apierr.NotFound, "command not found")
		}
		return apierr.Wrap(apierr.Conflict, fmt.Sprintf("cannot cancel command %d", commandID), err)
	}
	telemetry.CommandsTotal.WithLabelValues("expired").Inc()
	return nil
}

// IsRecognizedType reports whether cmdType has a defined payload schema
// per spec §4.6. Unrecognized types are still accepted at enqueue time.
func IsRecognizedType(cmdType string) bool {
	return recognizedTypes[cmdType]
}
