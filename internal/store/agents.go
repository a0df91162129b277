package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Agent is the persisted row for one enrolled fleet member. BearerTokenHash
// holds the SHA-256 hex digest of the bearer token, never the raw token:
// the raw value is handed to the agent once, at enrollment, and is not
// recoverable from the stored row.
type Agent struct {
	AgentID         string
	Hostname        string
	PublicKey       []byte
	BearerTokenHash string
	RegisteredAt    time.Time
	LastSeen        time.Time
	Status          string // active, revoked
}

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("not found")

// AgentStore persists agent registrations and their bearer tokens.
type AgentStore struct {
	db DBTX
}

// NewAgentStore creates an AgentStore backed by db.
func NewAgentStore(db DBTX) *AgentStore {
	return &AgentStore{db: db}
}

// Create inserts a new agent row. Callers must have already verified the
// registration signature and admin token.
func (s *AgentStore) Create(ctx context.Context, a Agent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO agents (agent_id, hostname, public_key, bearer_token, registered_at, last_seen, status)
		VALUES ($1, $2, $3, $4, $5, $5, 'active')`,
		a.AgentID, a.Hostname, a.PublicKey, a.BearerTokenHash, a.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("inserting agent: %w", err)
	}
	return nil
}

// GetByID returns the agent row for agentID, or ErrNotFound.
func (s *AgentStore) GetByID(ctx context.Context, agentID string) (*Agent, error) {
	row := s.db.QueryRow(ctx, `
		SELECT agent_id, hostname, public_key, bearer_token, registered_at, last_seen, status
		FROM agents WHERE agent_id = $1`, agentID)
	return scanAgent(row)
}

// GetByTokenHash returns the agent owning the given bearer token hash.
// Comparison happens as an equality lookup on an indexed unique column;
// the defense against guessing is the token's entropy, not comparison
// timing — a hash lookup can't be timed into revealing a live token's
// characters the way a direct secret comparison can.
func (s *AgentStore) GetByTokenHash(ctx context.Context, tokenHash string) (*Agent, error) {
	row := s.db.QueryRow(ctx, `
		SELECT agent_id, hostname, public_key, bearer_token, registered_at, last_seen, status
		FROM agents WHERE bearer_token = $1 AND status = 'active'`, tokenHash)
	return scanAgent(row)
}

func scanAgent(row pgx.Row) (*Agent, error) {
	var a Agent
	err := row.Scan(&a.AgentID, &a.Hostname, &a.PublicKey, &a.BearerTokenHash, &a.RegisteredAt, &a.LastSeen, &a.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning agent: %w", err)
	}
	return &a, nil
}

// TouchLastSeen bumps last_seen to now for the given agent. Called on every
// authenticated request.
func (s *AgentStore) TouchLastSeen(ctx context.Context, agentID string, now time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE agents SET last_seen = $2 WHERE agent_id = $1`, agentID, now)
	if err != nil {
		return fmt.Errorf("touching last_seen: %w", err)
	}
	return nil
}

// Revoke marks an agent as revoked; its bearer token is no longer accepted
// by GetByTokenHash (status != 'active').
func (s *AgentStore) Revoke(ctx context.Context, agentID string) error {
	tag, err := s.db.Exec(ctx, `UPDATE agents SET status = 'revoked' WHERE agent_id = $1`, agentID)
	if err != nil {
		return fmt.Errorf("revoking agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Purge permanently deletes an agent and, via foreign-key cascade, every
// series, point, log entry, and command it owns. Used to clear the way for
// re-registration with a different public key.
func (s *AgentStore) Purge(ctx context.Context, agentID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM agents WHERE agent_id = $1`, agentID)
	if err != nil {
		return fmt.Errorf("purging agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AgentSummary is the listing shape for GET /api/clients, including a
// derived health classification from last_seen.
type AgentSummary struct {
	Agent
	Health string // online, stale, offline
}

// List returns every agent, classified online/stale/offline against
// staleAfter relative to now.
func (s *AgentStore) List(ctx context.Context, now time.Time, staleAfter time.Duration) ([]AgentSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT agent_id, hostname, public_key, bearer_token, registered_at, last_seen, status
		FROM agents ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	defer rows.Close()

	var out []AgentSummary
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.AgentID, &a.Hostname, &a.PublicKey, &a.BearerTokenHash, &a.RegisteredAt, &a.LastSeen, &a.Status); err != nil {
			return nil, fmt.Errorf("scanning agent row: %w", err)
		}
		out = append(out, AgentSummary{Agent: a, Health: classifyHealth(a, now, staleAfter)})
	}
	return out, rows.Err()
}

func classifyHealth(a Agent, now time.Time, staleAfter time.Duration) string {
	if a.Status != "active" {
		return "offline"
	}
	age := now.Sub(a.LastSeen)
	if age <= staleAfter {
		return "online"
	}
	if age <= staleAfter*5 {
		return "stale"
	}
	return "offline"
}
