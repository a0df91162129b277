package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alkorolyov/dcmon/internal/store"
	"github.com/alkorolyov/dcmon/internal/telemetry"
	"github.com/alkorolyov/dcmon/pkg/labels"
)

// Sample is one (timestamp, value) pair in a query result series.
type Sample struct {
	TimestampUTCSec int64   `json:"timestamp_utc_sec"`
	Value           float64 `json:"value"`
}

// TimeseriesSpec parameterizes a Timeseries query (spec §4.4.2).
type TimeseriesSpec struct {
	MetricName  string
	Start, End  int64
	AgentIDs    []string // empty means all agents
	LabelFilter labels.Filter
	Aggregation Aggregation
	StepSec     int64 // 0 disables rebucketing
}

// Timeseries returns, per agent, the aggregated value at each timestamp in
// [Start, End], sorted ascending.
func (e *Engine) Timeseries(ctx context.Context, spec TimeseriesSpec) (map[string][]Sample, error) {
	timer := prometheus.NewTimer(telemetry.QueryDuration.WithLabelValues("timeseries"))
	defer timer.ObserveDuration()

	candidates, err := e.candidatesForAgents(ctx, spec.MetricName, spec.AgentIDs, spec.LabelFilter)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return map[string][]Sample{}, nil
	}

	points, err := e.rangePointsBySeries(ctx, candidates, spec.Start, spec.End)
	if err != nil {
		return nil, err
	}

	// group[(agent_id, bucket_timestamp)] = values across series to reduce.
	type groupKey struct {
		agentID string
		ts      int64
	}
	groups := make(map[groupKey][]float64)

	for _, s := range candidates {
		for _, p := range points[s.SeriesID] {
			ts := p.TimestampUTCSec
			if spec.StepSec > 0 {
				ts = (ts / spec.StepSec) * spec.StepSec
			}
			key := groupKey{agentID: s.AgentID, ts: ts}
			groups[key] = append(groups[key], p.Value)
		}
	}

	out := make(map[string][]Sample)
	for key, values := range groups {
		reduced, err := Reduce(spec.Aggregation, values)
		if err != nil {
			return nil, err
		}
		out[key.agentID] = append(out[key.agentID], Sample{TimestampUTCSec: key.ts, Value: reduced})
	}
	for agentID := range out {
		sort.Slice(out[agentID], func(i, j int) bool {
			return out[agentID][i].TimestampUTCSec < out[agentID][j].TimestampUTCSec
		})
	}
	return out, nil
}

// candidatesForAgents resolves every series for metricName surviving
// filter, restricted to agentIDs when non-empty.
func (e *Engine) candidatesForAgents(ctx context.Context, metricName string, agentIDs []string, filter labels.Filter) ([]store.Series, error) {
	if len(agentIDs) == 0 {
		return e.series.Find(ctx, "", metricName, filter)
	}

	var all []store.Series
	for _, agentID := range agentIDs {
		s, err := e.series.Find(ctx, agentID, metricName, filter)
		if err != nil {
			return nil, fmt.Errorf("finding series for agent %s: %w", agentID, err)
		}
		all = append(all, s...)
	}
	return all, nil
}

// genericPoint is the shared shape of IntPoint and FloatPoint once reduced
// to a float64 value, used internally to merge the two physical tables.
type genericPoint struct {
	TimestampUTCSec int64
	Value           float64
}

// rangePointsBySeries fetches every point in [from, to] for every
// candidate series, issuing exactly one query against metric_points_int
// and one against metric_points_float (never one per series), per the
// query-performance contract in spec §4.4.
func (e *Engine) rangePointsBySeries(ctx context.Context, candidates []store.Series, from, to int64) (map[int64][]genericPoint, error) {
	var intIDs, floatIDs []int64
	for _, s := range candidates {
		if s.ValueKind == store.KindInteger {
			intIDs = append(intIDs, s.SeriesID)
		} else {
			floatIDs = append(floatIDs, s.SeriesID)
		}
	}

	out := make(map[int64][]genericPoint, len(candidates))

	if len(intIDs) > 0 {
		byseries, err := e.points.RangeInt(ctx, intIDs, from, to)
		if err != nil {
			return nil, fmt.Errorf("fetching int range: %w", err)
		}
		for id, pts := range byseries {
			for _, p := range pts {
				out[id] = append(out[id], genericPoint{TimestampUTCSec: p.TimestampUTCSec, Value: float64(p.Value)})
			}
		}
	}
	if len(floatIDs) > 0 {
		byseriesFloat, err := e.points.RangeFloat(ctx, floatIDs, from, to)
		if err != nil {
			return nil, fmt.Errorf("fetching float range: %w", err)
		}
		for id, pts := range byseriesFloat {
			for _, p := range pts {
				out[id] = append(out[id], genericPoint{TimestampUTCSec: p.TimestampUTCSec, Value: p.Value})
			}
		}
	}
	return out, nil
}
