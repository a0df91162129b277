package ingest

import (
	"context"
	"time"

	"github.com/alkorolyov/dcmon/internal/apierr"
	"github.com/alkorolyov/dcmon/internal/store"
	"github.com/alkorolyov/dcmon/internal/telemetry"
)

// LogEntry is one line in a POST /api/logs batch.
type LogEntry struct {
	Source          string
	TimestampUTCSec int64
	Severity        int16
	Message         string
	Unit            string
	Identifier      string
	PID             int32
}

// LogBatch is the full body of a POST /api/logs request.
type LogBatch struct {
	AgentID string
	Entries []LogEntry
}

// Logs appends shipped log batches, per spec §4.5 ("append-only ingestion
// with the same authentication rules as metrics; no deduplication").
type Logs struct {
	logs   *store.LogStore
	agents *store.AgentStore
	now    func() time.Time
}

// NewLogs creates a Logs ingester.
func NewLogs(logs *store.LogStore, agents *store.AgentStore) *Logs {
	return &Logs{logs: logs, agents: agents, now: time.Now}
}

// Ingest appends every entry in the batch, then bumps the agent's
// last_seen. Unlike metrics, there is no per-entry rejection path: any
// malformed entry fails the whole request, since log lines carry no
// schema-discovery ambiguity to partially resolve.
func (l *Logs) Ingest(ctx context.Context, identityAgentID string, batch LogBatch) error {
	if batch.AgentID != identityAgentID {
		return apierr.New(apierr.Forbidden, "batch agent_id does not match authenticated identity")
	}

	rows := make([]store.LogEntry, 0, len(batch.Entries))
	for _, e := range batch.Entries {
		rows = append(rows, store.LogEntry{
			AgentID:         batch.AgentID,
			Source:          e.Source,
			TimestampUTCSec: e.TimestampUTCSec,
			Severity:        e.Severity,
			Message:         e.Message,
			Unit:            e.Unit,
			Identifier:      e.Identifier,
			PID:             e.PID,
		})
		telemetry.LogEntriesIngestedTotal.WithLabelValues(e.Source).Inc()
	}

	if err := l.logs.InsertBatch(ctx, rows); err != nil {
		return apierr.Wrap(apierr.Internal, "inserting log entries", err)
	}

	if err := l.agents.TouchLastSeen(ctx, batch.AgentID, l.now()); err != nil {
		return apierr.Wrap(apierr.Internal, "updating last_seen", err)
	}

	return nil
}
