package store

import (
	"context"
	"fmt"
)

// LogEntry is a single row in log_entries.
type LogEntry struct {
	EntryID         int64
	AgentID         string
	Source          string
	TimestampUTCSec int64
	Severity        int16
	Message         string
	Unit            string
	Identifier      string
	PID             int32
}

// LogStore persists and queries shipped log entries.
type LogStore struct {
	db DBTX
}

// NewLogStore creates a LogStore backed by db.
func NewLogStore(db DBTX) *LogStore {
	return &LogStore{db: db}
}

// InsertBatch appends entries from a single poll cycle, which can run into
// the thousands of lines.
func (s *LogStore) InsertBatch(ctx context.Context, entries []LogEntry) error {
	for _, e := range entries {
		_, err := s.db.Exec(ctx, `
			INSERT INTO log_entries (agent_id, source, timestamp_utc_sec, severity, message, unit, identifier, pid)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, 0))`,
			e.AgentID, e.Source, e.TimestampUTCSec, e.Severity, e.Message, e.Unit, e.Identifier, e.PID)
		if err != nil {
			return fmt.Errorf("inserting log entry: %w", err)
		}
	}
	return nil
}

// LogQuery narrows a log search to an agent, time window, and minimum
// severity (syslog scale: 0 is most severe, so "floor" means "at least
// this severe", i.e. Severity <= floor).
type LogQuery struct {
	AgentID       string
	From, To      int64
	SeverityFloor int16
	Limit         int
}

// Search returns log entries matching q, newest first.
func (s *LogStore) Search(ctx context.Context, q LogQuery) ([]LogEntry, error) {
	limit := q.Limit
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}

	rows, err := s.db.Query(ctx, `
		SELECT entry_id, agent_id, source, timestamp_utc_sec, severity, message,
		       COALESCE(unit, ''), COALESCE(identifier, ''), COALESCE(pid, 0)
		FROM log_entries
		WHERE agent_id = $1 AND timestamp_utc_sec BETWEEN $2 AND $3 AND severity <= $4
		ORDER BY timestamp_utc_sec DESC
		LIMIT $5`, q.AgentID, q.From, q.To, q.SeverityFloor, limit)
	if err != nil {
		return nil, fmt.Errorf("searching log entries: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.EntryID, &e.AgentID, &e.Source, &e.TimestampUTCSec, &e.Severity, &e.Message, &e.Unit, &e.Identifier, &e.PID); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes log entries with a timestamp before cutoff,
// returning the count removed. Used by the retention sweep.
func (s *LogStore) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM log_entries WHERE timestamp_utc_sec < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting old log entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
