package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// CommandStatus is the lifecycle state of a command. Transitions flow
// strictly forward: pending -> delivered -> executing -> (completed | failed),
// with a side transition to expired from pending or delivered once the
// command's TTL lapses before completion.
type CommandStatus string

const (
	CommandPending   CommandStatus = "pending"
	CommandDelivered CommandStatus = "delivered"
	CommandExecuting CommandStatus = "executing"
	CommandCompleted CommandStatus = "completed"
	CommandFailed    CommandStatus = "failed"
	CommandExpired   CommandStatus = "expired"
)

// Command is a row in the commands table: one instruction queued for an
// agent to fetch, run, and report back on.
type Command struct {
	CommandID   int64
	AgentID     string
	Type        string
	Payload     []byte // JSON
	Status      CommandStatus
	CreatedAt   time.Time
	DeliveredAt *time.Time
	CompletedAt *time.Time
	Result      []byte // JSON, nil until completed
	Error       string
}

// CommandStore persists the command queue and its state transitions.
type CommandStore struct {
	db DBTX
}

// NewCommandStore creates a CommandStore backed by db.
func NewCommandStore(db DBTX) *CommandStore {
	return &CommandStore{db: db}
}

// Enqueue inserts a new pending command for agentID and returns its ID.
func (s *CommandStore) Enqueue(ctx context.Context, agentID, cmdType string, payload []byte) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO commands (agent_id, command_type, payload, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING command_id`, agentID, cmdType, payload).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("enqueuing command: %w", err)
	}
	return id, nil
}

// Poll atomically claims every pending command for agentID, marking it
// delivered, and returns the claimed rows. SELECT ... FOR UPDATE SKIP
// LOCKED lets concurrent poll requests (e.g. a retried long-poll) avoid
// double-delivering the same command.
func (s *CommandStore) Poll(ctx context.Context, tx pgx.Tx, agentID string, now time.Time) ([]Command, error) {
	rows, err := tx.Query(ctx, `
		SELECT command_id, agent_id, command_type, payload, status, created_at, delivered_at, completed_at, result, error
		FROM commands
		WHERE agent_id = $1 AND status = 'pending'
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED`, agentID)
	if err != nil {
		return nil, fmt.Errorf("polling commands: %w", err)
	}

	var claimed []Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		claimed = append(claimed, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range claimed {
		if _, err := tx.Exec(ctx, `UPDATE commands SET status = 'delivered', delivered_at = $2 WHERE command_id = $1`, c.CommandID, now); err != nil {
			return nil, fmt.Errorf("marking command delivered: %w", err)
		}
	}
	return claimed, nil
}

func scanCommand(row pgx.Row) (Command, error) {
	var c Command
	err := row.Scan(&c.CommandID, &c.AgentID, &c.Type, &c.Payload, &c.Status, &c.CreatedAt, &c.DeliveredAt, &c.CompletedAt, &c.Result, &c.Error)
	if err != nil {
		return Command{}, fmt.Errorf("scanning command: %w", err)
	}
	return c, nil
}

// ErrInvalidTransition is returned when a status update would move a
// command backward or skip a required state.
var ErrInvalidTransition = errors.New("invalid command state transition")

var allowedTransitions = map[CommandStatus][]CommandStatus{
	CommandPending:   {CommandDelivered, CommandExpired},
	CommandDelivered: {CommandExecuting, CommandCompleted, CommandFailed, CommandExpired},
	CommandExecuting: {CommandCompleted, CommandFailed},
}

func transitionAllowed(from, to CommandStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// MarkExecuting transitions a delivered command to executing, acknowledging
// that the agent has started running it.
func (s *CommandStore) MarkExecuting(ctx context.Context, commandID int64) error {
	return s.transition(ctx, commandID, CommandExecuting, nil, "", nil)
}

// Complete transitions a command to completed with its result payload, or
// to failed with an error message if errMsg is non-empty.
func (s *CommandStore) Complete(ctx context.Context, commandID int64, result []byte, errMsg string, now time.Time) error {
	status := CommandCompleted
	if errMsg != "" {
		status = CommandFailed
	}
	return s.transition(ctx, commandID, status, result, errMsg, &now)
}

func (s *CommandStore) transition(ctx context.Context, commandID int64, to CommandStatus, result []byte, errMsg string, completedAt *time.Time) error {
	row := s.db.QueryRow(ctx, `SELECT status FROM commands WHERE command_id = $1`, commandID)
	var from CommandStatus
	if err := row.Scan(&from); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("reading command status: %w", err)
	}
	if !transitionAllowed(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	_, err := s.db.Exec(ctx, `
		UPDATE commands SET status = $2, result = $3, error = $4, completed_at = $5
		WHERE command_id = $1`, commandID, to, result, errMsg, completedAt)
	if err != nil {
		return fmt.Errorf("updating command status: %w", err)
	}
	return nil
}

// Cancel transitions a still-pending or delivered command to expired,
// backing the operator-initiated DELETE /api/commands/{command_id}
// endpoint. Commands already executing or in a terminal state cannot be
// cancelled.
func (s *CommandStore) Cancel(ctx context.Context, commandID int64, now time.Time) error {
	return s.transition(ctx, commandID, CommandExpired, nil, "cancelled", &now)
}

// ExpireOlderThan transitions every pending or delivered command created
// before cutoff to expired. Used by the retention sweep's command TTL pass.
func (s *CommandStore) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE commands SET status = 'expired', completed_at = now(), error = 'ttl exceeded'
		WHERE status IN ('pending', 'delivered') AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expiring stale commands: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetByID returns the command row for commandID.
func (s *CommandStore) GetByID(ctx context.Context, commandID int64) (*Command, error) {
	row := s.db.QueryRow(ctx, `
		SELECT command_id, agent_id, command_type, payload, status, created_at, delivered_at, completed_at, result, error
		FROM commands WHERE command_id = $1`, commandID)
	c, err := scanCommand(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListForAgent returns every command for agentID, newest first, optionally
// filtered to a single status.
func (s *CommandStore) ListForAgent(ctx context.Context, agentID string, status CommandStatus) ([]Command, error) {
	var rows pgx.Rows
	var err error
	if status != "" {
		rows, err = s.db.Query(ctx, `
			SELECT command_id, agent_id, command_type, payload, status, created_at, delivered_at, completed_at, result, error
			FROM commands WHERE agent_id = $1 AND status = $2 ORDER BY created_at DESC`, agentID, status)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT command_id, agent_id, command_type, payload, status, created_at, delivered_at, completed_at, result, error
			FROM commands WHERE agent_id = $1 ORDER BY created_at DESC`, agentID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing commands: %w", err)
	}
	defer rows.Close()

	var out []Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
