package store

import (
	"context"
	"fmt"
)

// GlobalCounts is the shape of GET /api/stats's top-level counters.
type GlobalCounts struct {
	Agents       int64
	Series       int64
	MetricPoints int64
	LogEntries   int64
	Commands     int64
}

// AgentPointCount is one row of the "top agents by point volume" breakdown
// SPEC_FULL.md adds to GET /api/stats.
type AgentPointCount struct {
	AgentID string
	Points  int64
}

// StatsStore runs the read-only aggregate queries behind GET /api/stats.
// It holds no state of its own and intentionally duplicates no write path.
type StatsStore struct {
	db DBTX
}

// NewStatsStore creates a StatsStore backed by db.
func NewStatsStore(db DBTX) *StatsStore {
	return &StatsStore{db: db}
}

// GlobalCounts returns fleet-wide row counts across every table.
func (s *StatsStore) GlobalCounts(ctx context.Context) (GlobalCounts, error) {
	var c GlobalCounts
	row := s.db.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM agents),
			(SELECT count(*) FROM metric_series),
			(SELECT count(*) FROM metric_points_int) + (SELECT count(*) FROM metric_points_float),
			(SELECT count(*) FROM log_entries),
			(SELECT count(*) FROM commands)`)
	if err := row.Scan(&c.Agents, &c.Series, &c.MetricPoints, &c.LogEntries, &c.Commands); err != nil {
		return GlobalCounts{}, fmt.Errorf("scanning global counts: %w", err)
	}
	return c, nil
}

// TopAgentsByPoints returns the limit agents with the most stored metric
// points, across both physical tables, descending.
func (s *StatsStore) TopAgentsByPoints(ctx context.Context, limit int) ([]AgentPointCount, error) {
	rows, err := s.db.Query(ctx, `
		SELECT agent_id, sum(cnt) AS total FROM (
			SELECT ms.agent_id, count(*) AS cnt
			FROM metric_points_int mp JOIN metric_series ms ON ms.series_id = mp.series_id
			GROUP BY ms.agent_id
			UNION ALL
			SELECT ms.agent_id, count(*) AS cnt
			FROM metric_points_float mp JOIN metric_series ms ON ms.series_id = mp.series_id
			GROUP BY ms.agent_id
		) per_table
		GROUP BY agent_id
		ORDER BY total DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top agents by points: %w", err)
	}
	defer rows.Close()

	var out []AgentPointCount
	for rows.Next() {
		var a AgentPointCount
		if err := rows.Scan(&a.AgentID, &a.Points); err != nil {
			return nil, fmt.Errorf("scanning top agent row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
